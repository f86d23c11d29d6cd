package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"azchat/internal/chat"
	"azchat/internal/ui"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a single prompt and print the reply",
	Long: `Send one prompt without entering the interactive loop.

Example:
  azchat ask "explain exit code 137"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := newClient(cfg)

		conv := chat.NewConversation(cfg.SystemPrompt)
		conv.AddUser(strings.Join(args, " "))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if noStream {
			sp := ui.NewSpinner("Thinking...")
			sp.Start()
			reply, err := client.Send(ctx, conv.Messages())
			sp.Stop()
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		}

		ch := client.Stream(ctx, conv.Messages())
		_, err = ui.RenderStream(os.Stdout, ch, "")
		return err
	},
}
