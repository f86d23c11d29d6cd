package cmd

import (
	"fmt"

	"azchat/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage azchat configuration",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Save the API key to the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0]); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Println("API key saved.")
		return nil
	},
}

var setEndpointCmd = &cobra.Command{
	Use:   "set-endpoint <url>",
	Short: "Save the Azure OpenAI endpoint URL to the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetEndpoint(args[0]); err != nil {
			return fmt.Errorf("failed to save endpoint: %w", err)
		}
		fmt.Printf("Endpoint set to %s.\n", args[0])
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <deployment-name>",
	Short: "Save the deployment/model name to the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model set to %s.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Endpoint:    %s\n", cfg.Endpoint)
		fmt.Printf("Model:       %s\n", cfg.Model)
		fmt.Printf("API Version: %s\n", cfg.APIVersion)
		fmt.Printf("API Key:     %s\n", maskKey(cfg.APIKey))
		fmt.Printf("Config Dir:  %s\n", config.Dir())
		return nil
	},
}

// maskKey hides all but the edges of a credential.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setEndpointCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(showCmd)
}
