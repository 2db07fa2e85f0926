// Command token mints a bearer token for a user id using the service's auth
// configuration. It is meant for local testing with auth.enabled=true.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"currency-conversion-service/config"
	"currency-conversion-service/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var userFlag, configPath string

	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Mint a bearer token for a user id",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth.secret is empty; set CCS_AUTH_SECRET")
			}

			userID := uuid.New()
			if userFlag != "" {
				userID, err = uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			}

			tokenSvc := service.NewJWTTokenService(cfg.Auth.Secret, cfg.Auth.Expiry, cfg.Auth.Issuer)
			token, expiresAt, err := tokenSvc.Generate(userID)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintf(out, "user_id:    %s\nexpires_at: %s\ntoken:      %s\n",
				userID, expiresAt.UTC().Format(time.RFC3339), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "user id (UUID) to use as the token subject; generated when empty")
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	return cmd
}
