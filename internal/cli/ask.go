package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/geoff/internal/layers"
	"github.com/roach88/geoff/internal/service"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions

	// Overrides replace the database, model and history (for testing).
	Overrides Overrides
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	return newAskCommand(&AskOptions{RootOptions: rootOpts})
}

func newAskCommand(opts *AskOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   `ask "<question>"`,
		Short: "Answer a question from the command line",
		Long: `Answer one question end to end: select tables, prompt the model for a
plan, compile it, run it against PostGIS and summarize the layers.

Failed attempts are retried with the error fed back to the model, up to
query.retries times. With --format json the full response, including
GeoJSON, is printed.

Examples:
  geoff ask "fire stations built before 1980"
  geoff ask "parks within 500 meters of a school" --format json > layers.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(opts, strings.Join(args, " "), cmd)
		},
	}

	return cmd
}

func runAsk(opts *AskOptions, question string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	log, err := opts.logger(cfg, formatter.GetErrWriter())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	b, err := opts.openBackend(ctx, cfg, log, opts.Overrides)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUnavailable, err.Error(), nil)
	}
	defer b.Close()

	log.Debug("asking", zap.String("question", question))
	resp, err := b.svc.Ask(ctx, question)
	if err != nil {
		code := string(service.CodeOf(err))
		if code == "" {
			code = ErrCodeGeneric
		}
		return formatter.Fail(ExitFailure, code, err.Error(), nil)
	}

	if resp.Failed() {
		return formatter.Fail(ExitFailure, string(resp.Code), resp.Error, resp)
	}

	if formatter.Format == "json" {
		return formatter.Success(resp)
	}
	writeResponse(formatter, resp)
	return nil
}

// writeResponse prints the SQL and one summary line per layer.
func writeResponse(formatter *OutputFormatter, resp *service.Response) {
	w := formatter.Writer
	fmt.Fprintln(w, resp.SQL)
	fmt.Fprintln(w)
	if resp.Attempts > 1 {
		fmt.Fprintf(w, "Answered after %d attempts\n", resp.Attempts)
	}
	fmt.Fprintf(w, "%d layer(s):\n", len(resp.Layers))
	for _, l := range resp.Layers {
		fmt.Fprintf(w, "  %s\n", layerSummary(l))
	}
	if resp.ID != "" {
		formatter.VerboseLog("Recorded as %s", resp.ID)
	}
}

func layerSummary(l layers.Layer) string {
	features := 0
	if l.GeoJSON != nil {
		features = len(l.GeoJSON.Features)
	}
	name := l.Name
	if l.Source != "" && l.Source != l.Name {
		name = fmt.Sprintf("%s (%s)", l.Name, l.Source)
	}
	return fmt.Sprintf("%s: %d feature(s), %d row(s)", name, features, len(l.Rows))
}
