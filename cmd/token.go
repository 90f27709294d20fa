package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alarm-dashboard/internal/auth"
)

var (
	tokenSubject  string
	tokenRole     string
	tokenOperator string
	tokenTTL      time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with the configured JWT secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, flush, err := loadConfig()
			if err != nil {
				return err
			}
			defer flush()
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			role, ok := auth.NormalizeRole(tokenRole)
			if !ok {
				return fmt.Errorf("unknown role %q", tokenRole)
			}
			token, err := auth.IssueJWT([]byte(cfg.Auth.JWTSecret), tokenSubject, role, tokenOperator, tokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "token subject")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", string(auth.RoleViewer), "role (viewer, operator, admin)")
	tokenCmd.Flags().StringVarP(&tokenOperator, "operator", "o", "", "operator id used when requests omit one")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}
