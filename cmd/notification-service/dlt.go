package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"herald/internal/constants"
	"herald/internal/deadletter"
	"herald/pkg/bootstrap"
	"herald/pkg/cel"
)

func dltCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlt",
		Short: "Inspect and replay dead-lettered messages",
	}

	cmd.AddCommand(dltListCmd(), dltShowCmd(), dltReplayCmd())
	return cmd
}

// withStore opens the persistent dead-letter store for a one-shot command.
func withStore(fn func(ctx context.Context, app *App, store deadletter.Store) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.DeadLetter.Store != constants.StoreMongoDB {
		return fmt.Errorf("dlt commands need dead_letter.store=%s, got %q", constants.StoreMongoDB, cfg.DeadLetter.Store)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	app := NewApp(cfg, log)
	if err := app.ConnectStores(ctx, bootstrap.MongoDB, 0); err != nil {
		return err
	}
	defer func() {
		_ = app.Shutdown(ctx)
	}()

	return fn(ctx, app, deadletter.NewMongoStore(app.Stores.MongoDB))
}

func dltListCmd() *cobra.Command {
	var (
		filter string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-letter records, newest first",
		Example: `  notification-service dlt list --limit 20
  notification-service dlt list --filter 'attempts > 3 && exception_message.contains("timeout")'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := deadletter.ListOptions{Limit: limit}
			if filter != "" {
				f, err := parseFilter(filter)
				if err != nil {
					return err
				}
				opts.Filter = f
			}

			return withStore(func(ctx context.Context, _ *App, store deadletter.Store) error {
				records, err := store.List(ctx, opts)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tRECEIVED\tORIGINAL\tKEY\tATTEMPTS\tERROR")
				for _, rec := range records {
					fmt.Fprintf(w, "%s\t%s\t%s/%d@%d\t%s\t%d\t%s\n",
						rec.ID,
						rec.ReceivedAt.Format(time.RFC3339),
						rec.OriginalTopic, rec.OriginalPartition, rec.OriginalOffset,
						rec.Key,
						rec.Attempts,
						truncate(rec.ExceptionMessage, 60),
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "CEL expression over record fields")
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultDeadLetterListLimit, "Maximum number of records")
	return cmd
}

func dltShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one dead-letter record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, _ *App, store deadletter.Store) error {
				rec, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			})
		},
	}
}

func dltReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <id>",
		Short: "Republish a dead-letter record to its original topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, app *App, store deadletter.Store) error {
				if err := app.InitBroker(); err != nil {
					return err
				}

				rec, err := deadletter.Replay(ctx, store, app.Producer, args[0])
				if err != nil {
					return err
				}

				app.Logger.InfowCtx(ctx, "Dead-letter record replayed",
					"record_id", rec.ID,
					"topic", rec.OriginalTopic,
					"key", rec.Key,
				)
				fmt.Fprintf(cmd.OutOrStdout(), "replayed %s to %s\n", rec.ID, rec.OriginalTopic)
				return nil
			})
		},
	}
}

// parseFilter compiles a --filter expression. A rejected expression is
// reported together with sample expressions.
func parseFilter(expr string) (*deadletter.Filter, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	if err := evaluator.ValidateFilterExpression(expr); err != nil {
		names := make([]string, 0, len(cel.FilterExpressionExamples))
		for name := range cel.FilterExpressionExamples {
			names = append(names, name)
		}
		sort.Strings(names)

		var b strings.Builder
		fmt.Fprintf(&b, "invalid --filter: %v\nexamples:", err)
		for _, name := range names {
			fmt.Fprintf(&b, "\n  %-20s %s", name, cel.FilterExpressionExamples[name])
		}
		return nil, errors.New(b.String())
	}

	return deadletter.NewFilter(evaluator, expr)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}
