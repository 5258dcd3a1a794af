package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/eval"
	"github.com/grovekit/grove/internal/printer"
)

var evalCmd = &cobra.Command{
	Use:   "eval FORMULA_ID CONTEXT_TAG_ID",
	Short: "Evaluate a formula under a context tag",
	Long: `Evaluate a formula.

Each $variable is resolved through its binding at the context tag and the
expression is computed over the bound tags' values. A variable with no
binding, a dangling target, or a valueless target makes the result
incomplete; the missing variables are listed instead of a value.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		formulaID, err := resolveID(ctx, store, "formula", args[0])
		if err != nil {
			return err
		}
		contextTagID, err := resolveID(ctx, store, "tag", args[1])
		if err != nil {
			return err
		}

		evaluator := eval.NewEvaluator(store)
		result, err := evaluator.Evaluate(ctx, formulaID, contextTagID)
		if err != nil {
			if errors.Is(err, eval.ErrUnsafeExpression) {
				return printer.Error(
					"unsafe expression",
					err.Error(),
					[]string{"Formulas may use arithmetic, comparisons, and conditionals only"},
				)
			}
			return err
		}

		if !result.Complete {
			printer.Warning("incomplete: missing %s\n", strings.Join(prefixed(result.Missing), ", "))
			return nil
		}
		printer.Println(result.Value)
		return nil
	},
}

func prefixed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "$" + n
	}
	return out
}

func init() {
	rootCmd.AddCommand(evalCmd)
}
