package thrive

import (
	"context"
	"fmt"
	"strings"

	"github.com/neurothrive/thrive/internal/syncer"
	"github.com/neurothrive/thrive/internal/voice"
	"github.com/spf13/cobra"
)

var voiceCmd = &cobra.Command{
	Use:   "voice <transcript>",
	Short: "Apply a spoken command, e.g. \"my mood is 7\" or \"log a win: shipped it\"",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(env *appEnv) error {
			in := &voice.Interpreter{
				DB:     env.db,
				Logger: env.logger,
				Sync: func(ctx context.Context) error {
					rec, err := env.reconciler()
					if err != nil {
						return err
					}
					_, err = rec.Run(ctx, syncer.TriggerManual, false)
					return err
				},
			}
			out, err := in.Handle(cmdContext(cmd), strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(voiceCmd)
}
