package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/scholargate/internal/session"
)

func sessionCmd() *cobra.Command {
	var gatewayURL string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Drive a session bridge against a running gateway",
	}
	cmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "gateway URL (overrides SESSION_GATEWAY_URL)")

	newBridge := func() (*session.Bridge, error) {
		cfg, logger, err := setup()
		if err != nil {
			return nil, err
		}
		if gatewayURL != "" {
			cfg.Session.GatewayURL = gatewayURL
		}
		return session.New(session.Options{
			GatewayURL:   cfg.Session.GatewayURL,
			Timeout:      cfg.Session.Timeout,
			SettleDelay:  cfg.Session.SettleDelay,
			ConfirmDelay: cfg.Session.ConfirmDelay,
			Logger:       logger,
		})
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Fetch a CSRF token and report the anonymous session status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bridge, err := newBridge()
			if err != nil {
				return err
			}
			token, err := bridge.EnsureCSRFToken(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"token_issued": token != "",
				"state":        bridge.State().String(),
				"status":       bridge.AuthStatus(cmd.Context()),
			})
		},
	}

	var user string
	probe := &cobra.Command{
		Use:   "probe",
		Short: "Log in, confirm the session and log out again",
		Long: "Log in through the gateway, confirm the session and log out again.\n" +
			"The password is read from SESSION_PASSWORD.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("SESSION_PASSWORD")
			if user == "" || password == "" {
				return fmt.Errorf("--user and SESSION_PASSWORD are required")
			}

			bridge, err := newBridge()
			if err != nil {
				return err
			}
			authStatus, err := bridge.Login(cmd.Context(), user, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			defer bridge.Logout(cmd.Context())

			return printJSON(cmd, map[string]any{
				"state":  bridge.State().String(),
				"status": authStatus,
			})
		},
	}
	probe.Flags().StringVar(&user, "user", "", "account e-mail or username")

	cmd.AddCommand(status, probe)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
