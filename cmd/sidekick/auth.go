package main

import (
	"fmt"
	"time"

	"github.com/mark3labs/sidekick/internal/auth"
	"github.com/mark3labs/sidekick/internal/config"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider credentials",
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate via the OAuth device flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.AuthEndpoint == "" || cfg.AuthClientID == "" {
			return fmt.Errorf("device flow not configured: set auth_endpoint and auth_client_id in sidekick.yml")
		}

		client := &auth.Client{Endpoint: cfg.AuthEndpoint, ClientID: cfg.AuthClientID}

		code, err := client.RequestDeviceCode(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to request device code: %w", err)
		}

		fmt.Printf("Visit:      %s\n", code.VerificationURI)
		fmt.Printf("Enter code: %s\n\n", titleStyle.Render(code.UserCode))
		fmt.Println(dimStyle.Render("Waiting for authorization..."))

		tok, err := client.PollToken(cmd.Context(), code)
		if err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}

		if err := auth.SaveCredentials(tok); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}

		fmt.Printf("Logged in. Credentials saved to %s\n", auth.CredentialsPath())
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.ClearCredentials(); err != nil {
			return fmt.Errorf("failed to clear credentials: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auth.LoadCredentials()
		if err != nil {
			return fmt.Errorf("failed to load credentials: %w", err)
		}
		if creds == nil {
			fmt.Println("Not logged in.")
			return nil
		}
		if creds.Expired() {
			fmt.Printf("Credentials expired at %s. Run 'sidekick auth login'.\n",
				creds.ExpiresAt.Format(time.RFC3339))
			return nil
		}
		if creds.ExpiresAt.IsZero() {
			fmt.Println("Logged in.")
			return nil
		}
		fmt.Printf("Logged in (expires %s).\n", creds.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}
