package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"azchat/internal/ai"
	"azchat/internal/chat"
	"azchat/internal/config"
	"azchat/internal/ui"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	flagEndpoint   string
	flagAPIKey     string
	flagModel      string
	flagAPIVersion string
	noStream       bool
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "azchat",
	Short: "An interactive chat CLI for Azure OpenAI",
	Long: `azchat is a conversational client for Azure OpenAI chat deployments.
Replies stream to the terminal token by token as the model generates them.

Interactive commands:
  quit, exit   end the session
  clear        reset the conversation history

Configuration comes from flags, environment variables (OPENAI_API_ENDPOINT,
OPENAI_API_KEY, OPENAI_API_MODEL, OPENAI_API_VERSION) or ~/.azchat/config.toml.`,
	Args:          cobra.NoArgs,
	RunE:          runChat,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagEndpoint, "endpoint", "e", "", "Azure OpenAI endpoint URL")
	pf.StringVarP(&flagAPIKey, "api-key", "k", "", "API key for authentication")
	pf.StringVarP(&flagModel, "model", "m", "", "Deployment/model name")
	pf.StringVar(&flagAPIVersion, "api-version", "", "Azure OpenAI API version")
	pf.BoolVar(&noStream, "no-stream", false, "Wait for the full reply instead of streaming")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log stream diagnostics to stderr")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion wires the build-time version into --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// loadConfig resolves configuration and applies flag overrides, failing
// fast — before any network call — if a required setting is missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagEndpoint != "" {
		cfg.Endpoint = flagEndpoint
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagAPIVersion != "" {
		cfg.APIVersion = flagAPIVersion
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *ai.Client {
	var debug io.Writer
	if verbose {
		debug = os.Stderr
	}
	provider := ai.NewAzureProvider(ai.AzureConfig{
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		APIVersion: cfg.APIVersion,
		Debug:      debug,
	})
	return ai.NewClient(provider)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := newClient(cfg)

	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	fmt.Fprintln(os.Stderr)
	cyan.Fprintf(os.Stderr, "azchat — %s\n", cfg.Model)
	dim.Fprintln(os.Stderr, "Type 'quit' or 'exit' to end, 'clear' to reset the conversation.")
	fmt.Fprintln(os.Stderr)

	// liner gives arrow-key line editing and in-session input history.
	// Nothing is written to disk.
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	prompt := green.Sprint("you → ")
	readLine := func() (string, error) {
		input, err := line.Prompt(prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		return input, nil
	}

	sess := &chat.Session{
		Client:   client,
		Conv:     chat.NewConversation(cfg.SystemPrompt),
		Out:      os.Stdout,
		ErrOut:   os.Stderr,
		ReadLine: readLine,
		Stream:   !noStream,
		Prefix:   cyan.Sprint("assistant → "),
		NewSpinner: func() chat.Spinner {
			return ui.NewSpinner("Thinking...")
		},
	}
	return sess.Run(cmd.Context())
}
