package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hubtest/internal/contexthub"
	"github.com/roach88/hubtest/internal/store"
	"github.com/roach88/hubtest/internal/txn"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string // optional - filter to one scenario run
	Kind     string // optional - load, unload or query
	Reason   string // optional - outcome reason
	Limit    int
}

// TraceEvent is one logged transaction in the timeline.
type TraceEvent struct {
	Seq           int64  `json:"seq"`
	Run           string `json:"run"`
	TransactionID string `json:"transaction_id,omitempty"`
	Kind          string `json:"kind"`
	Reason        string `json:"reason"`
	Code          *int32 `json:"code,omitempty"`
	TimeoutMS     int64  `json:"timeout_ms"`
	ElapsedMS     int64  `json:"elapsed_ms"`
	CompletedAt   string `json:"completed_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      string       `json:"run,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats counts every matching transaction by reason, ignoring
// --reason and --limit.
type TraceStats struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show logged hub transactions",
		Long: `Show transactions recorded by "hubtest test --db".

The output includes:
- Timeline: transactions in the order they completed
- Stats: outcome counts per reason

Examples:
  hubtest trace --db ./hubtest.db
  hubtest trace --db ./hubtest.db --run unload_timeout
  hubtest trace --db ./hubtest.db --kind load --reason timed_out
  hubtest trace --db ./hubtest.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Database == "" {
				opts.Database = opts.Config.DB
			}
			if opts.Database == "" {
				return NewExitError(ExitCommandError, `required flag(s) "db" not set`)
			}
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "filter to one scenario run")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by transaction kind (load|unload|query)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "filter by outcome reason")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many transactions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := newFormatter(cmd, opts.RootOptions)

	filter, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	// Open would create a fresh database; a missing log is a usage error.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.ReadTransactions(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transactions", err)
	}
	counts, err := st.CountByReason(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count transactions", err)
	}

	result := TraceResult{
		Run:      opts.Run,
		Timeline: buildTimeline(entries),
		Stats:    buildStats(counts),
	}

	if out.JSON() {
		return out.Success(result)
	}
	return outputTraceText(out.Writer, result, opts.Verbose)
}

func (o *TraceOptions) filter() (store.Filter, error) {
	f := store.Filter{Run: o.Run, Limit: o.Limit}
	if o.Kind != "" {
		kind, err := contexthub.ParseKind(o.Kind)
		if err != nil {
			return f, err
		}
		f.Kind = kind
	}
	if o.Reason != "" {
		reason, err := txn.ParseReason(o.Reason)
		if err != nil {
			return f, err
		}
		f.Reason = reason
	}
	return f, nil
}

// buildTimeline converts store entries to trace timeline events.
func buildTimeline(entries []store.Entry) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		rec := e.Record
		ev := TraceEvent{
			Seq:           e.Seq,
			Run:           e.Run,
			TransactionID: rec.TransactionID,
			Kind:          rec.Kind.Label(),
			Reason:        string(rec.Reason),
			TimeoutMS:     rec.Timeout.Milliseconds(),
			ElapsedMS:     rec.Elapsed.Milliseconds(),
			CompletedAt:   rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		}
		if rec.HasCode {
			code := rec.Code
			ev.Code = &code
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

func buildStats(counts map[txn.Reason]int) TraceStats {
	stats := TraceStats{ByReason: make(map[string]int, len(counts))}
	for reason, n := range counts {
		stats.ByReason[string(reason)] = n
		stats.Total += n
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	if result.Run != "" {
		fmt.Fprintf(w, "Transactions for run: %s\n", result.Run)
	} else {
		fmt.Fprintln(w, "Transactions for all runs")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no transactions)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total: %d\n", result.Stats.Total)
	for _, reason := range txn.Reasons {
		if n := result.Stats.ByReason[string(reason)]; n > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", string(reason)+":", n)
		}
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %-6s %s", event.Seq, event.Kind, event.Reason)
	if event.Code != nil {
		fmt.Fprintf(w, " code=%d (%s)", *event.Code, contexthub.ResultString(*event.Code))
	}
	fmt.Fprintf(w, " %dms\n", event.ElapsedMS)
	if verbose {
		fmt.Fprintf(w, "       Run: %s\n", event.Run)
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.TransactionID))
		fmt.Fprintf(w, "       Completed: %s (budget %dms)\n", event.CompletedAt, event.TimeoutMS)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if id == "" {
		return "(none)"
	}
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
