package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/printer"
	"github.com/grovekit/grove/internal/template"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Capture and assign formula templates",
	Long: `Capture and assign templates.

Capturing a template deep-copies a formula, its variables, and a snapshot
of their bindings. Assigning the template onto a tag stamps that formula,
rebinds each variable under the target, and clones the dependent tag
sub-tree with fresh identifiers so each stamped instance diverges
independently.`,
}

var templateScopeID string

var templateCreateCmd = &cobra.Command{
	Use:   "create NAME FORMULA_ID",
	Short: "Capture a template from a formula",
	Long: `Capture a template.

With --scope, binding defaults are snapshotted from that context tag and
the tag sub-tree under it is remembered for cloning on assignment. Without
--scope, each variable's binding with the lowest ID is used and no sub-tree
is cloned.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		formulaID, err := resolveID(ctx, store, "formula", args[1])
		if err != nil {
			return err
		}
		scopeID := ""
		if templateScopeID != "" {
			scopeID, err = resolveID(ctx, store, "tag", templateScopeID)
			if err != nil {
				return err
			}
		}

		engine := template.NewEngine(store)
		tmpl, err := engine.Create(ctx, args[0], formulaID, scopeID)
		if err != nil {
			return err
		}
		printer.Success("captured template %s (%s)\n", tmpl.Name, shortID(tmpl.ID))
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		templates, err := store.ListTemplates(ctx)
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			printer.Info("no templates\n")
			return nil
		}
		printer.Printf("%-10s %-25s %-10s %s\n", "ID", "NAME", "FORMULA", "SOURCE")
		for _, t := range templates {
			printer.Printf("%-10s %-25s %-10s %s\n",
				shortID(t.ID), t.Name, shortID(t.FormulaID), shortID(t.SourceFormulaID))
		}
		return nil
	},
}

var templateAssignCmd = &cobra.Command{
	Use:   "assign TEMPLATE_ID TARGET_TAG_ID",
	Short: "Stamp a template onto a target tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		templateID, err := resolveID(ctx, store, "template", args[0])
		if err != nil {
			return err
		}
		targetTagID, err := resolveID(ctx, store, "tag", args[1])
		if err != nil {
			return err
		}

		engine := template.NewEngine(store)
		result, err := engine.Assign(ctx, templateID, targetTagID)
		if err != nil {
			return err
		}
		printer.Success("assigned template %s onto %s: formula %s, %d tag(s) cloned\n",
			shortID(result.TemplateID), shortID(result.TargetTagID),
			shortID(result.FormulaID), result.ClonedTags)
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete TEMPLATE_ID",
	Short: "Delete a template and its private formula copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		templateID, err := resolveID(ctx, store, "template", args[0])
		if err != nil {
			return err
		}
		engine := template.NewEngine(store)
		if err := engine.Delete(ctx, templateID); err != nil {
			return err
		}
		printer.Success("deleted template %s\n", shortID(templateID))
		return nil
	},
}

func init() {
	templateCreateCmd.Flags().StringVar(&templateScopeID, "scope", "", "Context tag to snapshot bindings and sub-tree from")
	templateCmd.AddCommand(templateCreateCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateAssignCmd)
	templateCmd.AddCommand(templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}
