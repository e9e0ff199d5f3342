package cli

import (
	"fmt"
	"time"

	"courier/internal/middleware"

	"github.com/spf13/cobra"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UserID uint
	TTL    time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		Long: `Issue a bearer token signed with JWT_SECRET, for local testing against
the API.

Example:
  curl -H "Authorization: Bearer $(courierctl token --user 1)" localhost:8375/api/messengers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.UserID == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(cfg, opts.UserID, opts.TTL)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			return rootOpts.print(cmd.OutOrStdout(),
				map[string]any{"user_id": opts.UserID, "token": token, "expires_in": int(opts.TTL.Seconds())},
				token)
		},
	}

	cmd.Flags().UintVar(&opts.UserID, "user", 0, "user id to put in the subject claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
