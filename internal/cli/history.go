package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/geoff/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// QueryDetail is one recorded question with its attempts.
type QueryDetail struct {
	Query    store.Query     `json:"query"`
	Attempts []store.Attempt `json:"attempts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recorded questions",
		Long: `List recorded questions, newest first, or show one question with
every attempt made to answer it.

History is read from history.path.

Examples:
  geoff history
  geoff history --limit 5
  geoff history 01928c4e-7d9a-7b1e-9f2a-3c4d5e6f7a8b`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryShow(opts, args[0], cmd)
			}
			return runHistoryList(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of questions (0 for all)")

	return cmd
}

// openHistory opens the configured history store.
func (o *HistoryOptions) openHistory(formatter *OutputFormatter) (*store.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if cfg.History.Path == "" {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, "history is disabled (history.path is empty)", nil)
	}
	formatter.VerboseLog("Reading history from %s", cfg.History.Path)
	st, err := store.Open(cfg.History.Path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeRead, err.Error(), nil)
	}
	return st, nil
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if opts.Limit < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--limit must be >= 0", nil)
	}

	st, err := opts.openHistory(formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	queries, err := st.ListQueries(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRead, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(queries)
	}

	w := formatter.Writer
	if len(queries) == 0 {
		fmt.Fprintln(w, "No questions recorded.")
		return nil
	}
	for _, q := range queries {
		mark := "✓"
		if q.Status != store.StatusOK {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s  %q (%d attempt(s), %d layer(s))\n",
			mark, q.CreatedAt.Format(time.RFC3339), q.ID, q.Question, q.Attempts, q.LayerCount)
	}
	return nil
}

func runHistoryShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := opts.openHistory(formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	q, attempts, err := st.GetQuery(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitFailure, ErrCodeNotFound, err.Error(), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRead, err.Error(), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(QueryDetail{Query: q, Attempts: attempts})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s  %s\n", q.ID, q.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Question: %s\n", q.Question)
	fmt.Fprintf(w, "Status:   %s\n", q.Status)
	if q.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", q.Error)
	}
	for _, a := range attempts {
		fmt.Fprintf(w, "\n-- attempt %d\n", a.Seq)
		if a.SQL != "" {
			fmt.Fprintln(w, a.SQL)
		} else {
			fmt.Fprintln(w, a.Plan)
		}
		if a.Error != "" {
			fmt.Fprintf(w, "-- error: %s\n", a.Error)
		}
	}
	return nil
}
