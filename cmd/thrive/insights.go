package thrive

import (
	"fmt"

	"github.com/neurothrive/thrive/internal/insights"
	"github.com/neurothrive/thrive/internal/provider/anthropic"
	"github.com/spf13/cobra"
)

var insightsPrompt string

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Summarize recent mood, wins and therapy sessions with AI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			if env.cfg.AnthropicAPIKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY is not set")
			}
			gen := &insights.Generator{
				DB:        env.db,
				Completer: &anthropic.Client{APIKey: env.cfg.AnthropicAPIKey, Model: env.cfg.AIModel},
				Logger:    env.logger,
			}
			out := cmd.OutOrStdout()
			if insightsPrompt != "" {
				text, err := gen.Custom(cmdContext(cmd), insightsPrompt)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
				return nil
			}
			items, err := gen.GenerateAll(cmdContext(cmd))
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "Not enough recent data for insights yet")
				return nil
			}
			for i, it := range items {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s\n%s\n", it.Title, it.Text)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().StringVar(&insightsPrompt, "prompt", "", "Ask a custom question instead")
}
