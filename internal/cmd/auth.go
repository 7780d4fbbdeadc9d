package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/config"
	"github.com/youtell/visrec-cli/internal/validation"
)

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Aliases: []string{"au"},
		Short:   "Manage authentication credentials",
		Long:    "Configure and manage visual recognition credentials stored securely in your OS keychain.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthListCmd())
	cmd.AddCommand(newAuthUseCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		apiKey      string
		accessToken string
		serviceURL  string
		apiVersion  string
		iamURL      string
		profile     string
		envFile     string
		verify      bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save credentials for a service instance",
		Long: strings.TrimSpace(`
Save visual recognition credentials securely to your OS keychain.

Provide either an API key (exchanged for short-lived access tokens, or sent
directly for keys starting with "icp-") or an access token you manage
yourself.
`),
		Example: strings.TrimSpace(`
  # Save an API key for the default service URL
  visrec auth login --api-key YOUR_KEY

  # Save a token for a private deployment under its own profile
  visrec auth login --access-token TOKEN --service-url https://vr.example.com/api --profile onprem

  # Load credentials from a .env file and check they work
  visrec auth login --env-file .env --verify
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				envVars, err := loadAuthEnvFile(envFile)
				if err != nil {
					return err
				}
				applyAuthEnvFileRuntimeVars(envVars)

				fill := func(dst *string, key string) {
					if *dst == "" {
						*dst = strings.TrimSpace(envVars[key])
					}
				}
				fill(&apiKey, config.EnvAPIKey)
				fill(&accessToken, config.EnvAccessToken)
				fill(&serviceURL, config.EnvServiceURL)
				fill(&apiVersion, config.EnvVersion)
				fill(&iamURL, config.EnvIAMURL)
				if !cmd.Flags().Changed("profile") {
					if envProfile := strings.TrimSpace(envVars[config.EnvProfile]); envProfile != "" {
						profile = envProfile
					}
				}
			}

			if apiKey == "" && accessToken == "" {
				return fmt.Errorf("--api-key or --access-token is required")
			}
			if apiKey != "" && accessToken != "" {
				return fmt.Errorf("--api-key and --access-token conflict; set only one of them")
			}

			serviceURL = strings.TrimSuffix(strings.TrimSpace(serviceURL), "/")
			if serviceURL != "" {
				if err := validation.ValidateServiceURL(serviceURL); err != nil {
					return fmt.Errorf("invalid service URL: %w", err)
				}
			}

			creds := config.Credentials{
				ServiceURL:  serviceURL,
				Version:     apiVersion,
				APIKey:      apiKey,
				AccessToken: accessToken,
				IAMURL:      iamURL,
			}

			if verify {
				cfg := config.ClientConfig{Credentials: creds, Profile: profile, Source: "keyring"}
				if err := verifyCredentials(cmd, cfg); err != nil {
					return err
				}
			}

			if err := config.SaveProfile(profile, creds); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"saved":     true,
					"profile":   profileName(profile),
					"auth_type": creds.AuthType(),
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Authentication credentials saved successfully!")
			if serviceURL != "" {
				_, _ = fmt.Fprintf(out, "  Service URL: %s\n", serviceURL)
			}
			_, _ = fmt.Fprintf(out, "  Auth: %s\n", creds.AuthType())
			_, _ = fmt.Fprintf(out, "  Profile: %s\n", profileName(profile))
			return nil
		}),
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Long-lived API key")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Access token you refresh yourself")
	cmd.Flags().StringVar(&serviceURL, "service-url", "", "Service base URL (default: public endpoint)")
	cmd.Flags().StringVar(&apiVersion, "api-version", "", "API version date, e.g. 2018-03-19")
	cmd.Flags().StringVar(&iamURL, "iam-url", "", "Token exchange endpoint for API keys")
	cmd.Flags().StringVar(&profile, "profile", "default", "Profile name to save credentials under")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load VISREC_* (and optional VISREC_KEYRING_*) values from a .env file")
	cmd.Flags().BoolVar(&verify, "verify", false, "List classifiers with the new credentials before saving")

	return cmd
}

func verifyCredentials(cmd *cobra.Command, cfg config.ClientConfig) error {
	if cfg.ServiceURL == "" {
		cfg.ServiceURL = strings.TrimSpace(os.Getenv(config.EnvServiceURL))
	}
	cfg.ApplyDefaults()
	client, err := newClientFactory().newClient(cfg)
	if err != nil {
		return err
	}
	if _, err := client.Classifiers().List(cmdContext(cmd), nil, nil); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	printIfNotQuiet(cmd, "Credentials verified against %s\n", cfg.ServiceURL)
	return nil
}

func profileName(profile string) string {
	if strings.TrimSpace(profile) == "" {
		return "default"
	}
	return profile
}

func loadAuthEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--env-file requires a file path")
	}

	envVars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --env-file %q: %w", path, err)
	}
	return envVars, nil
}

// applyAuthEnvFileRuntimeVars copies keyring settings from --env-file into
// the process environment when they are not already exported.
func applyAuthEnvFileRuntimeVars(envVars map[string]string) {
	keys := []string{
		"VISREC_KEYRING_BACKEND",
		"VISREC_KEYRING_PASSWORD",
		"VISREC_CREDENTIALS_DIR",
	}
	for _, key := range keys {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value := strings.TrimSpace(envVars[key])
		if value == "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current authentication configuration",
		Long:  "Display the credentials the next command would use. Secrets are masked.",
		Example: strings.TrimSpace(`
  visrec auth status
  visrec auth status --json
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ResolveClientConfig(flags.Profile)
			if err != nil {
				if errors.Is(err, config.ErrNotConfigured) {
					if isJSON(cmd) {
						return printJSON(cmd, map[string]any{
							"authenticated": false,
							"message":       "Not authenticated. Run 'visrec auth login' to configure credentials.",
						})
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'visrec auth login' to configure credentials.")
					return nil
				}
				return err
			}

			secret := cfg.APIKey
			if secret == "" {
				secret = cfg.AccessToken
			}

			if isJSON(cmd) {
				payload := map[string]any{
					"authenticated": true,
					"service_url":   cfg.ServiceURL,
					"version":       cfg.Version,
					"auth_type":     cfg.AuthType(),
					"secret":        maskToken(secret),
					"source":        cfg.Source,
				}
				if cfg.Profile != "" {
					payload["profile"] = cfg.Profile
				}
				if cfg.AuthType() == "api_key" {
					payload["iam_url"] = cfg.IAMURL
				}
				return printJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Authenticated")
			_, _ = fmt.Fprintf(out, "  Service URL: %s\n", cfg.ServiceURL)
			_, _ = fmt.Fprintf(out, "  Version: %s\n", cfg.Version)
			_, _ = fmt.Fprintf(out, "  Auth: %s (%s)\n", cfg.AuthType(), maskToken(secret))
			if cfg.AuthType() == "api_key" {
				_, _ = fmt.Fprintf(out, "  IAM URL: %s\n", cfg.IAMURL)
			}
			if cfg.Profile != "" {
				_, _ = fmt.Fprintf(out, "  Profile: %s\n", cfg.Profile)
			}
			_, _ = fmt.Fprintf(out, "  Source: %s\n", cfg.Source)
			return nil
		}),
	}
}

func newAuthLogoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove credentials from keychain",
		Example: strings.TrimSpace(`
  visrec auth logout
  visrec auth logout --profile onprem
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if profile == "" {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				profile = current
			}

			if err := config.DeleteProfile(profile); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s removed.\n", profile)
			return nil
		}),
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Profile name to remove (defaults to current)")
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved profiles",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, err := config.CurrentProfile()
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"profiles": profiles,
					"current":  current,
				})
			}

			if len(profiles) == 0 {
				newFormatter(cmd).Empty("No profiles saved.")
				return nil
			}
			for _, p := range profiles {
				marker := " "
				if p == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, p)
			}
			return nil
		}),
	}
}

func newAuthUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			found := false
			for _, p := range profiles {
				if p == name {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("profile %q not found; run 'visrec auth list'", name)
			}
			if err := config.SetCurrentProfile(name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile %s\n", name)
			return nil
		}),
	}
}
