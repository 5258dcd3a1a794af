package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/printer"
	"github.com/grovekit/grove/pkg/tagstore"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage the tag hierarchy",
}

var (
	tagMasterID  string
	tagAsChild   bool
	tagRecursive bool
)

var tagCreateCmd = &cobra.Command{
	Use:   "create ANCHOR_ID NAME",
	Short: "Create a tag anchored to a subgroup (or to a parent tag with --child)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		masterTagID := ""
		if tagMasterID != "" {
			masterTagID, err = resolveID(ctx, store, "mastertag", tagMasterID)
			if err != nil {
				return err
			}
		}

		var tag *tagstore.Tag
		if tagAsChild {
			parentID, err := resolveID(ctx, store, "tag", args[0])
			if err != nil {
				return err
			}
			tag, err = store.CreateChildTag(ctx, parentID, args[1], masterTagID)
			if err != nil {
				return err
			}
		} else {
			subgroupID, err := resolveID(ctx, store, "subgroup", args[0])
			if err != nil {
				return err
			}
			tag, err = store.CreateRootTag(ctx, subgroupID, args[1], masterTagID)
			if err != nil {
				return err
			}
		}
		printer.Success("created tag %s (%s)\n", tag.Name, shortID(tag.ID))
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list SUBGROUP_ID",
	Short: "List a subgroup's root tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		subgroupID, err := resolveID(ctx, store, "subgroup", args[0])
		if err != nil {
			return err
		}
		tags, err := store.ListRootTags(ctx, subgroupID)
		if err != nil {
			return err
		}
		printTagTable(tags)
		return nil
	},
}

var tagChildrenCmd = &cobra.Command{
	Use:   "children TAG_ID",
	Short: "List a tag's children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tagID, err := resolveID(ctx, store, "tag", args[0])
		if err != nil {
			return err
		}
		tags, err := store.ListChildren(ctx, tagID)
		if err != nil {
			return err
		}
		printTagTable(tags)
		return nil
	},
}

var tagSetValueCmd = &cobra.Command{
	Use:   "set-value TAG_ID VALUE",
	Short: "Set a tag's scalar value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tagID, err := resolveID(ctx, store, "tag", args[0])
		if err != nil {
			return err
		}
		tag, err := store.SetTagValue(ctx, tagID, args[1])
		if err != nil {
			return err
		}
		printer.Success("set %s = %s\n", tag.Name, tag.Value)
		return nil
	},
}

var tagSetFormulaCmd = &cobra.Command{
	Use:   "set-formula TAG_ID [FORMULA_ID]",
	Short: "Assign a formula to a tag (omit FORMULA_ID to clear)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tagID, err := resolveID(ctx, store, "tag", args[0])
		if err != nil {
			return err
		}
		formulaID := ""
		if len(args) == 2 {
			formulaID, err = resolveID(ctx, store, "formula", args[1])
			if err != nil {
				return err
			}
		}
		tag, err := store.SetTagFormula(ctx, tagID, formulaID)
		if err != nil {
			return err
		}
		if formulaID == "" {
			printer.Success("cleared formula on %s\n", tag.Name)
		} else {
			printer.Success("set formula %s on %s\n", shortID(formulaID), tag.Name)
		}
		return nil
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete TAG_ID",
	Short: "Delete a tag and its context bindings",
	Long: `Delete a tag.

Bindings whose context is this tag are deleted with it. Bindings that merely
target it are kept; formulas that depended on it evaluate as incomplete
until rebound. Children are left in place unless --recursive is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tagID, err := resolveID(ctx, store, "tag", args[0])
		if err != nil {
			return err
		}
		if err := store.DeleteTag(ctx, tagID, tagRecursive); err != nil {
			return err
		}
		printer.Success("deleted tag %s\n", shortID(tagID))
		return nil
	},
}

func printTagTable(tags []*tagstore.Tag) {
	if len(tags) == 0 {
		printer.Info("no tags\n")
		return
	}
	printer.Printf("%-10s %-25s %-10s %s\n", "ID", "NAME", "FORMULA", "VALUE")
	for _, t := range tags {
		formulaCol := "-"
		if t.FormulaID != "" {
			formulaCol = shortID(t.FormulaID)
		}
		valueCol := "-"
		if t.HasValue {
			valueCol = t.Value
		}
		printer.Printf("%-10s %-25s %-10s %s\n", shortID(t.ID), t.Name, formulaCol, valueCol)
	}
}

func init() {
	tagCreateCmd.Flags().StringVar(&tagMasterID, "master", "", "Master tag ID to type this tag against")
	tagCreateCmd.Flags().BoolVar(&tagAsChild, "child", false, "Treat ANCHOR_ID as a parent tag instead of a subgroup")
	tagDeleteCmd.Flags().BoolVar(&tagRecursive, "recursive", false, "Also delete the whole child sub-tree")
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagChildrenCmd)
	tagCmd.AddCommand(tagSetValueCmd)
	tagCmd.AddCommand(tagSetFormulaCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	rootCmd.AddCommand(tagCmd)
}
