package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/giveandget/giveandget/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage operator access tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(a))
	return cmd
}

func newTokenIssueCmd(a *app) *cobra.Command {
	var (
		subject string
		orgID   string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an operator token signed with JWT_SIGNING_KEY",
		Example: `  giveandget-admin token issue --subject ops@harborlight.org --org org_harbor_light
  giveandget-admin token issue --subject root@giveandget.org --role admin --ttl 12h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jwtConfig := auth.JWTConfigFromEnv()
			if jwtConfig.UsesDefaultKey() {
				a.logger.Warn().Msg("signing with the default development key")
			}

			service := auth.NewService(auth.ServiceConfig{
				JWTService: auth.NewJWTService(jwtConfig),
			})

			issued, err := service.IssueToken(cmd.Context(), subject, orgID, role, ttl)
			if err != nil {
				return err
			}

			a.logger.Info().
				Str("subject", subject).
				Str("organization_id", orgID).
				Str("role", role).
				Time("expires_at", issued.ExpiresAt).
				Msg("token issued")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(issued)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "operator identity, stored in the sub claim (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "organization the operator manages")
	cmd.Flags().StringVar(&role, "role", auth.RoleOperator, "operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
