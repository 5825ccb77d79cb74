package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/geoff/internal/examples"
)

// NewExamplesCommand creates the examples command.
func NewExamplesCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	var showPlans bool

	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List example questions",
		Long: `List the example questions that are shown to the model, with the tables
each one reads. --plans also prints the plan for each question.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if limit < 0 {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--limit must be >= 0", nil)
			}

			list := examples.Default().Limit(limit)

			if formatter.Format == "json" {
				return formatter.Success(list)
			}
			for i, ex := range list {
				fmt.Fprintf(formatter.Writer, "%s  [%s]\n", ex.Question, strings.Join(ex.Sources, ", "))
				if showPlans {
					fmt.Fprintf(formatter.Writer, "%s\n", strings.TrimSpace(ex.Plan))
					if i < len(list)-1 {
						fmt.Fprintln(formatter.Writer)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of examples (0 for all)")
	cmd.Flags().BoolVar(&showPlans, "plans", false, "print each example's plan")

	return cmd
}
