package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskline/taskline/internal/storage"
	"github.com/taskline/taskline/internal/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline statistics and recent tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		st, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.DBPath})
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer st.Close()

		stats, err := st.GetStatistics(ctx)
		if err != nil {
			return fmt.Errorf("reading statistics: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Taskline ==="))
		fmt.Printf("%s\n", yellow("Conversations:"))
		fmt.Printf("  Buffered:  %d\n", stats.BufferedConversations)
		fmt.Printf("  Finalized: %d\n", stats.FinalizedConversations)
		fmt.Println()
		fmt.Printf("%s\n", yellow("Tasks:"))
		fmt.Printf("  Total:     %d\n", stats.TotalTasks)
		fmt.Printf("  Last 48h:  %d\n", stats.TasksLast48h)
		fmt.Println()

		tasks, err := st.GetRecentTasks(ctx, time.Now().UTC().Add(-cfg.DedupLookback))
		if err != nil {
			return fmt.Errorf("reading recent tasks: %w", err)
		}

		fmt.Printf("%s\n", yellow("Recent tasks:"))
		if len(tasks) == 0 {
			fmt.Printf("  %s\n", gray("none in the lookback window"))
		}
		for _, task := range tasks {
			fmt.Printf("  %s %s %s\n", priorityBadge(task.Priority), task.Action,
				gray(fmt.Sprintf("(%s, %s)", task.Sender, task.CreatedAt.Format("2006-01-02 15:04"))))
		}
		fmt.Println()
		return nil
	},
}

func priorityBadge(p types.Priority) string {
	switch p {
	case types.PriorityUrgent:
		return color.New(color.FgRed, color.Bold).Sprint("[urgent]")
	case types.PriorityHigh:
		return color.New(color.FgRed).Sprint("[high]  ")
	case types.PriorityMedium:
		return color.New(color.FgYellow).Sprint("[medium]")
	default:
		return color.New(color.FgHiBlack).Sprint("[low]   ")
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
