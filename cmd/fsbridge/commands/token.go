package commands

import (
	"fmt"

	"github.com/marmos91/fsbridge/pkg/config"
	"github.com/marmos91/fsbridge/pkg/transport/httpapi"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <client-name>",
	Short: "Issue a bearer token for the HTTP adapter",
	Long: `Issue a signed bearer token that a client presents to the HTTP adapter.
The token is signed with adapters.http.jwt.secret from the configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if cfg.Adapters.HTTP.JWT.Secret == "" {
		return fmt.Errorf("no JWT secret configured: set adapters.http.jwt.secret or FSBRIDGE_ADAPTERS_HTTP_JWT_SECRET")
	}

	auth, err := httpapi.NewAuthenticator(cfg.Adapters.HTTP.JWT)
	if err != nil {
		return err
	}

	token, err := auth.IssueToken(args[0])
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
