package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscore/internal/resilience"
)

var (
	dlqErrorType   string
	dlqLimit       int
	dlqConcurrency int
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and re-drive failed CRM updates",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered CRM updates that are due for retry",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.DequeueDLQ(cmd.Context(), resilience.DLQFilter{
			ErrorType: dlqErrorType,
			Limit:     dlqLimit,
		})
		if err != nil {
			return err
		}

		total, err := st.CountDLQ(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"due":   entries,
			"total": total,
		})
	},
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-drive due dead-lettered CRM updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Store.DequeueDLQ(cmd.Context(), resilience.DLQFilter{
			ErrorType: dlqErrorType,
			Limit:     dlqLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			zap.L().Info("no dead letter entries due")
			return nil
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(dlqConcurrency)

		for _, entry := range entries {
			g.Go(func() error {
				if err := env.Writer.Replay(ctx, entry.Update); err != nil {
					zap.L().Warn("dead letter replay failed",
						zap.String("id", entry.ID),
						zap.Int("retry_count", entry.RetryCount),
						zap.Error(err),
					)
					// Push the next attempt out further each time.
					next := time.Now().UTC().Add(time.Duration(entry.RetryCount+1) * 5 * time.Minute)
					return env.Store.IncrementDLQRetry(ctx, entry.ID, next, err.Error())
				}
				zap.L().Info("dead letter replayed",
					zap.String("id", entry.ID),
					zap.String("salesforce_lead_id", entry.Update.SalesforceLeadID),
				)
				return env.Store.RemoveDLQ(ctx, entry.ID)
			})
		}
		return g.Wait()
	},
}

func init() {
	dlqCmd.PersistentFlags().StringVar(&dlqErrorType, "error-type", "", "filter by error type (transient or permanent)")
	dlqCmd.PersistentFlags().IntVar(&dlqLimit, "limit", 100, "maximum entries to process")
	dlqRetryCmd.Flags().IntVar(&dlqConcurrency, "concurrency", 4, "parallel replay workers")
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}
