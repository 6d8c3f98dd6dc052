package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskline/taskline/internal/types"
)

var (
	ingestChannel string
	ingestThread  string
	ingestSender  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [message body]",
	Short: "Feed one message into the conversation buffer",
	Long: `Buffer a single message. The message joins the open conversation for its
channel and thread (or time bucket), creating one if needed. If the
conversation now qualifies for early release it is finalized and its
candidate tasks are extracted and recorded immediately; otherwise it waits
for the sweeper.

Example:
  taskline ingest --channel eng --sender maria "can you restart the importer asap"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		p, st, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		conv, err := p.Ingest(ctx, types.InboundMessage{
			Channel:  ingestChannel,
			ThreadID: ingestThread,
			Sender:   ingestSender,
			Body:     args[0],
		})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("%s Buffered into conversation %s (%d messages)\n",
			green("✓"), conv.ID, len(conv.Messages))
		if conv.Finalized {
			fmt.Printf("%s Early release: %d recorded, %d suppressed\n",
				green("✓"), p.CountCreated(), p.CountSuppressed())
		} else {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("conversation key %s, waiting for the sweeper", conv.Key)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestChannel, "channel", "", "Channel the message arrived on (required)")
	ingestCmd.Flags().StringVar(&ingestThread, "thread", "", "Thread id, if the message is part of a thread")
	ingestCmd.Flags().StringVar(&ingestSender, "sender", "", "Message sender (required)")
	ingestCmd.MarkFlagRequired("channel")
	ingestCmd.MarkFlagRequired("sender")
}
