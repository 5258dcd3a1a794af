package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/binding"
	"github.com/grovekit/grove/internal/printer"
)

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Manage variable-to-tag bindings",
	Long: `Manage bindings.

A binding means "variable X, evaluated under context tag C, takes the value
of tag T". Each (variable, context) pair holds at most one binding; setting
a second retargets the first.`,
}

var bindSetCmd = &cobra.Command{
	Use:   "set VARIABLE_ID CONTEXT_TAG_ID TARGET_TAG_ID",
	Short: "Bind a variable to a target tag under a context",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		variableID, err := resolveID(ctx, store, "variable", args[0])
		if err != nil {
			return err
		}
		contextTagID, err := resolveID(ctx, store, "tag", args[1])
		if err != nil {
			return err
		}
		targetTagID, err := resolveID(ctx, store, "tag", args[2])
		if err != nil {
			return err
		}

		resolver := binding.NewResolver(store)
		b, err := resolver.Upsert(ctx, variableID, contextTagID, targetTagID)
		if err != nil {
			return err
		}
		printer.Success("bound variable %s under %s to %s (%s)\n",
			shortID(variableID), shortID(contextTagID), shortID(targetTagID), shortID(b.ID))
		return nil
	},
}

var bindListCmd = &cobra.Command{
	Use:   "list CONTEXT_TAG_ID",
	Short: "List the bindings anchored at a context tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		contextTagID, err := resolveID(ctx, store, "tag", args[0])
		if err != nil {
			return err
		}
		bindings, err := store.ListBindingsForContext(ctx, contextTagID)
		if err != nil {
			return err
		}
		if len(bindings) == 0 {
			printer.Info("no bindings\n")
			return nil
		}
		printer.Printf("%-10s %-12s %s\n", "ID", "VARIABLE", "TARGET")
		for _, b := range bindings {
			v, err := store.GetVariable(ctx, b.VariableID)
			if err != nil {
				return err
			}
			printer.Printf("%-10s $%-11s %s\n", shortID(b.ID), v.Name, shortID(b.TargetTagID))
		}
		return nil
	},
}

var bindDeleteCmd = &cobra.Command{
	Use:   "delete BINDING_ID",
	Short: "Delete a binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		bindingID, err := resolveID(ctx, store, "binding", args[0])
		if err != nil {
			return err
		}
		resolver := binding.NewResolver(store)
		if err := resolver.Delete(ctx, bindingID); err != nil {
			return err
		}
		printer.Success("deleted binding %s\n", shortID(bindingID))
		return nil
	},
}

func init() {
	bindCmd.AddCommand(bindSetCmd)
	bindCmd.AddCommand(bindListCmd)
	bindCmd.AddCommand(bindDeleteCmd)
	rootCmd.AddCommand(bindCmd)
}
