package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ultralan/HakiMeet/pkg/cli"
)

const appName = "hakimeet"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool
	logFile     string

	// Global configuration
	globalConfig *cli.Config
	globalPaths  *cli.Paths
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hakimeet",
	Short: "HakiMeet voice interview CLI tool",
	Long: `HakiMeet CLI - voice interviews over the Doubao realtime dialogue API.

  - realtime connect: one dialogue from the terminal (greeting or PCM file)
  - serve: the websocket bridge used by the browser client

Configuration is stored in ~/.hakimeet/hakimeet/ and supports multiple contexts,
similar to kubectl's context management. DOUBAO_VOICE_APP_ID,
DOUBAO_VOICE_ACCESS_KEY, DOUBAO_VOICE_WS_URL, DOUBAO_VOICE_RESOURCE_ID and
DOUBAO_VOICE_APP_KEY fill fields a context leaves empty.

Examples:
  # Set up a new context
  hakimeet config add-context prod --app-id YOUR_APP_ID --access-key YOUR_ACCESS_KEY

  # Say hello and print the interviewer's reply
  hakimeet -c prod realtime connect -g "你好"

  # Run the bridge
  hakimeet -c prod serve -f prompts.yaml --addr :8080
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.hakimeet/hakimeet/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to ~/.hakimeet/hakimeet/logs/<name>")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(realtimeCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	var err error
	globalPaths, err = cli.NewPaths(appName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s paths: %v\n", appName, err)
	}

	// Configure slog based on verbose flag
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if logFile != "" && globalPaths != nil {
		f, err := globalPaths.OpenLogFile(logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: log file: %v\n", err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})))

	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, err)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use, with environment
// fallbacks applied.
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContextWithEnv(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag, set a default context with 'hakimeet config use-context', or export %s", cli.EnvAppID)
		}
		return nil, err
	}

	return ctx, nil
}

// getInputFile returns the input file path
func getInputFile() string {
	return inputFile
}

// getOutputFile returns the output file path
func getOutputFile() string {
	return outputFile
}

// isJSONOutput returns whether output should be JSON
func isJSONOutput() bool {
	return outputJSON
}

// outputResult outputs the result using cli package
func outputResult(result any, outputPath string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputPath,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	if verbose {
		cli.PrintInfo(format, args...)
	}
}
