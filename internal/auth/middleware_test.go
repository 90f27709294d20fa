package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Operator", OperatorIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthMiddleware_ViewerForbiddenTransition(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer", "")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarms/12/accept", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAuthMiddleware_ViewerReadsDashboard(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer", "")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stream?access_token="+token, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAuthMiddleware_OperatorTransitionCarriesOperatorID(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "operator", "op42")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarms/12/dismiss", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "op42", resp.Header().Get("X-Operator"))
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := NewMiddleware([]byte("s"), NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)).Wrap(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	handler := NewMiddleware(nil, NewDefaultPolicy(nil, nil)).Wrap(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarms/1/accept", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestParseJWT_Expired(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	_, err = ParseJWT(signed, secret)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueJWT_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueJWT(secret, "maria", RoleOperator, "maria01", time.Hour)
	require.NoError(t, err)
	claims, err := ParseJWT(token, secret)
	require.NoError(t, err)
	require.Equal(t, "maria", claims.Subject)
	require.Equal(t, "maria01", claims.OperatorID)

	_, err = IssueJWT(secret, "x", Role("root"), "", time.Hour)
	require.Error(t, err)
}

func mustToken(t *testing.T, secret []byte, role, operatorID string) string {
	t.Helper()
	claims := Claims{
		Role:       role,
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestRoleAtLeast(t *testing.T) {
	require.True(t, RoleAtLeast(RoleAdmin, RoleOperator))
	require.True(t, RoleAtLeast(RoleOperator, RoleOperator))
	require.False(t, RoleAtLeast(RoleViewer, RoleOperator))
	require.False(t, RoleAtLeast(Role("root"), RoleViewer))

	role, ok := NormalizeRole(" Operator ")
	require.True(t, ok)
	require.Equal(t, RoleOperator, role)
}

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/alarms", nil)
		req.Header.Set("Authorization", header)
		require.Equal(t, want, extractBearer(req), header)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stream?access_token=qs", nil)
	require.Equal(t, "qs", extractBearer(req))
}

func TestMissingTokenChallenges(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/alarms", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}
