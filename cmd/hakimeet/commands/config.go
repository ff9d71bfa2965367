package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ultralan/HakiMeet/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple voice service credentials,
similar to kubectl's context management.

Configuration is stored in ~/.hakimeet/hakimeet/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

The realtime dialogue API requires:
  - App ID: Your application ID
  - Access Key: sent as X-Api-Access-Key

Example:
  hakimeet config add-context prod --app-id YOUR_APP_ID --access-key YOUR_ACCESS_KEY

  # Custom endpoint and voice
  hakimeet config add-context staging \
    --app-id YOUR_APP_ID --access-key YOUR_ACCESS_KEY \
    --ws-url wss://openspeech.bytedance.com \
    --speaker zh_male_yunzhou_jupiter_bigtts --max-retries 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		appID, err := cmd.Flags().GetString("app-id")
		if err != nil {
			return fmt.Errorf("failed to read 'app-id' flag: %w", err)
		}
		if appID == "" {
			return fmt.Errorf("--app-id is required")
		}

		accessKey, err := cmd.Flags().GetString("access-key")
		if err != nil {
			return fmt.Errorf("failed to read 'access-key' flag: %w", err)
		}
		if accessKey == "" {
			return fmt.Errorf("--access-key is required")
		}

		appKey, _ := cmd.Flags().GetString("app-key")
		wsURL, _ := cmd.Flags().GetString("ws-url")
		resourceID, _ := cmd.Flags().GetString("resource-id")
		speaker, _ := cmd.Flags().GetString("speaker")

		timeout, err := cmd.Flags().GetInt("timeout")
		if err != nil {
			return fmt.Errorf("failed to read 'timeout' flag: %w", err)
		}

		maxRetries, err := cmd.Flags().GetInt("max-retries")
		if err != nil {
			return fmt.Errorf("failed to read 'max-retries' flag: %w", err)
		}

		ctx := &cli.Context{
			Client: &cli.ClientCredentials{
				AppID:     appID,
				AccessKey: accessKey,
				AppKey:    appKey,
			},
			WSURL:      wsURL,
			ResourceID: resourceID,
			Timeout:    timeout,
			MaxRetries: maxRetries,
			Speaker:    speaker,
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		names := cfg.ListContexts()
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tCLIENT\tWS_URL\tSPEAKER")

		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			clientStatus := "✗"
			if ctx.Client != nil && ctx.Client.AppID != "" && ctx.Client.AccessKey != "" {
				clientStatus = "✓"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, clientStatus, ctx.WSURL, ctx.Speaker)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		names := cfg.ListContexts()
		sort.Strings(names)
		if len(names) > 0 {
			fmt.Println("\nContext details:")
		}
		for _, name := range names {
			ctx := cfg.Contexts[name]
			fmt.Printf("\n  %s:\n", name)

			if ctx.Client != nil {
				fmt.Println("    Client (Realtime API):")
				fmt.Printf("      App ID: %s\n", ctx.Client.AppID)
				fmt.Printf("      Access Key: %s\n", cli.MaskAPIKey(ctx.Client.AccessKey))
				if ctx.Client.AppKey != "" {
					fmt.Printf("      App Key: %s\n", cli.MaskAPIKey(ctx.Client.AppKey))
				}
			}

			// Optional settings
			if ctx.WSURL != "" {
				fmt.Printf("    WS URL: %s\n", ctx.WSURL)
			}
			if ctx.ResourceID != "" {
				fmt.Printf("    Resource ID: %s\n", ctx.ResourceID)
			}
			if ctx.Timeout > 0 {
				fmt.Printf("    Timeout: %ds\n", ctx.Timeout)
			}
			if ctx.MaxRetries > 0 {
				fmt.Printf("    Max Retries: %d\n", ctx.MaxRetries)
			}
			if ctx.Speaker != "" {
				fmt.Printf("    Speaker: %s\n", ctx.Speaker)
			}
		}

		return nil
	},
}

func init() {
	// add-context flags - Client credentials (required)
	configAddContextCmd.Flags().String("app-id", "", "Application ID (required)")
	configAddContextCmd.Flags().String("access-key", "", "Access key (required)")
	configAddContextCmd.Flags().String("app-key", "", "Override the fixed X-Api-App-Key")

	// add-context flags - Optional settings
	configAddContextCmd.Flags().String("ws-url", "", "WebSocket base URL")
	configAddContextCmd.Flags().String("resource-id", "", "Override X-Api-Resource-Id")
	configAddContextCmd.Flags().Int("timeout", 0, "Handshake timeout in seconds")
	configAddContextCmd.Flags().Int("max-retries", 0, "Connection attempts per (re)connect")
	configAddContextCmd.Flags().String("speaker", "", "TTS speaker")

	// Add subcommands
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
