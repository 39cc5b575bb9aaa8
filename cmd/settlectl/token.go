package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Issue access tokens for operators and scripts",
	}

	var (
		userID   string
		username string
		role     string
		ttl      time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token with the configured jwt.secret",
		Example: `  settlectl token issue --user-id 6f1c... --role admin --ttl 1h
  settlectl token issue --user-id 6f1c... --role team_leader --username ahmed`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user-id: %w", err)
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			issued, err := auth.NewJWTService(cfg.JWT).Issue(auth.IssueInput{
				UserID:   id,
				Username: username,
				Role:     auth.Role(role),
				TTL:      ttl,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(issued)
		},
	}
	issue.Flags().StringVar(&userID, "user-id", "", "Subject user id (UUID)")
	issue.Flags().StringVar(&username, "username", "", "Display name carried in the token")
	issue.Flags().StringVar(&role, "role", "", "admin, accountant, supervisor or team_leader")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (default: jwt.access_token_expiration)")
	_ = issue.MarkFlagRequired("user-id")
	_ = issue.MarkFlagRequired("role")

	token.AddCommand(issue)
	return token
}
