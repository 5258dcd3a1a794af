package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/formula"
	"github.com/grovekit/grove/internal/printer"
	"github.com/grovekit/grove/pkg/tagstore"
)

var formulaCmd = &cobra.Command{
	Use:   "formula",
	Short: "Manage formulas and their derived variables",
	Long: `Manage formulas.

A formula's expression references variables with a $ sigil, e.g.
"$flow * $density". The variable set is derived from the text: editing the
expression reconciles stored variables automatically, and variables that no
longer appear lose their bindings.`,
}

var formulaDesc string

var formulaCreateCmd = &cobra.Command{
	Use:   "create NAME EXPRESSION",
	Short: "Create a formula",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		registry := formula.NewRegistry(store)
		f, vars, err := registry.Create(ctx, args[0], formulaDesc, args[1])
		if err != nil {
			return err
		}
		printer.Success("created formula %s (%s) with %d variable(s): %s\n",
			f.Name, shortID(f.ID), len(vars), variableNames(vars))
		return nil
	},
}

var formulaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all formulas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		formulas, err := store.ListFormulas(ctx)
		if err != nil {
			return err
		}
		if len(formulas) == 0 {
			printer.Info("no formulas\n")
			return nil
		}
		printer.Printf("%-10s %-25s %s\n", "ID", "NAME", "EXPRESSION")
		for _, f := range formulas {
			printer.Printf("%-10s %-25s %s\n", shortID(f.ID), f.Name, f.Expression)
		}
		return nil
	},
}

var formulaShowCmd = &cobra.Command{
	Use:   "show FORMULA_ID",
	Short: "Show a formula and its variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(ctx, store, "formula", args[0])
		if err != nil {
			return err
		}
		f, err := store.GetFormula(ctx, id)
		if err != nil {
			return err
		}
		vars, err := store.ListVariables(ctx, id)
		if err != nil {
			return err
		}

		printer.Printf("ID:         %s\n", f.ID)
		printer.Printf("Name:       %s\n", f.Name)
		if f.Desc != "" {
			printer.Printf("Desc:       %s\n", f.Desc)
		}
		printer.Printf("Expression: %s\n", f.Expression)
		printer.Printf("Variables:\n")
		for _, v := range vars {
			printer.Printf("  %-10s $%s\n", shortID(v.ID), v.Name)
		}
		return nil
	},
}

var formulaSetCmd = &cobra.Command{
	Use:   "set-expression FORMULA_ID EXPRESSION",
	Short: "Replace a formula's expression, reconciling its variables",
	Long: `Replace a formula's expression.

Variables still present in the new text are re-derived fresh; variables that
disappeared are deleted along with every binding that referenced them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(ctx, store, "formula", args[0])
		if err != nil {
			return err
		}
		registry := formula.NewRegistry(store)
		f, vars, err := registry.SetExpression(ctx, id, "", formulaDesc, args[1])
		if err != nil {
			return err
		}
		printer.Success("updated formula %s: %d variable(s): %s\n",
			shortID(f.ID), len(vars), variableNames(vars))
		return nil
	},
}

var formulaDeleteCmd = &cobra.Command{
	Use:   "delete FORMULA_ID",
	Short: "Delete a formula, its variables, and their bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(ctx, store, "formula", args[0])
		if err != nil {
			return err
		}
		registry := formula.NewRegistry(store)
		if err := registry.Delete(ctx, id); err != nil {
			if tagstore.IsConflict(err) {
				return printer.Error(
					"formula is in use",
					err.Error(),
					[]string{"Delete the templates that hold this formula first"},
				)
			}
			return err
		}
		printer.Success("deleted formula %s\n", shortID(id))
		return nil
	},
}

func variableNames(vars []*tagstore.Variable) string {
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, "$"+v.Name)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func init() {
	formulaCreateCmd.Flags().StringVar(&formulaDesc, "desc", "", "Formula description")
	formulaSetCmd.Flags().StringVar(&formulaDesc, "desc", "", "Formula description")
	formulaCmd.AddCommand(formulaCreateCmd)
	formulaCmd.AddCommand(formulaListCmd)
	formulaCmd.AddCommand(formulaShowCmd)
	formulaCmd.AddCommand(formulaSetCmd)
	formulaCmd.AddCommand(formulaDeleteCmd)
	rootCmd.AddCommand(formulaCmd)
}
