package auth

import "context"

type contextKey string

const (
	contextKeyRole     contextKey = "auth.role"
	contextKeySubject  contextKey = "auth.subject"
	contextKeyOperator contextKey = "auth.operator_id"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, role Role, subject, operatorID string) context.Context {
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	ctx = context.WithValue(ctx, contextKeyOperator, operatorID)
	return ctx
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	return ""
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	return stringValue(ctx, contextKeySubject)
}

// OperatorIDFromContext extracts the operator id claim.
func OperatorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, contextKeyOperator)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
