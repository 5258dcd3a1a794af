package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/printer"
)

var subgroupCmd = &cobra.Command{
	Use:   "subgroup",
	Short: "Manage subgroups within assets",
}

var subgroupCreateCmd = &cobra.Command{
	Use:   "create ASSET_ID NAME",
	Short: "Create a subgroup within an asset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		assetID, err := resolveID(ctx, store, "asset", args[0])
		if err != nil {
			return err
		}
		subgroup, err := store.CreateSubgroup(ctx, assetID, args[1])
		if err != nil {
			return err
		}
		printer.Success("created subgroup %s (%s)\n", subgroup.Name, shortID(subgroup.ID))
		return nil
	},
}

var subgroupListCmd = &cobra.Command{
	Use:   "list ASSET_ID",
	Short: "List an asset's subgroups",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		assetID, err := resolveID(ctx, store, "asset", args[0])
		if err != nil {
			return err
		}
		subgroups, err := store.ListSubgroups(ctx, assetID)
		if err != nil {
			return err
		}
		if len(subgroups) == 0 {
			printer.Info("no subgroups\n")
			return nil
		}
		printer.Printf("%-10s %s\n", "ID", "NAME")
		for _, s := range subgroups {
			printer.Printf("%-10s %s\n", shortID(s.ID), s.Name)
		}
		return nil
	},
}

var subgroupRenameCmd = &cobra.Command{
	Use:   "rename SUBGROUP_ID NAME",
	Short: "Rename a subgroup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(ctx, store, "subgroup", args[0])
		if err != nil {
			return err
		}
		subgroup, err := store.RenameSubgroup(ctx, id, args[1])
		if err != nil {
			return err
		}
		printer.Success("renamed subgroup %s to %s\n", shortID(subgroup.ID), subgroup.Name)
		return nil
	},
}

var subgroupTemplatesCmd = &cobra.Command{
	Use:   "templates SUBGROUP_ID",
	Short: "List templates assigned into a subgroup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(ctx, store, "subgroup", args[0])
		if err != nil {
			return err
		}
		templates, err := store.ListSubgroupTemplates(ctx, id)
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			printer.Info("no templates assigned\n")
			return nil
		}
		printer.Printf("%-10s %s\n", "ID", "NAME")
		for _, t := range templates {
			printer.Printf("%-10s %s\n", shortID(t.ID), t.Name)
		}
		return nil
	},
}

func init() {
	subgroupCmd.AddCommand(subgroupCreateCmd)
	subgroupCmd.AddCommand(subgroupListCmd)
	subgroupCmd.AddCommand(subgroupRenameCmd)
	subgroupCmd.AddCommand(subgroupTemplatesCmd)
	rootCmd.AddCommand(subgroupCmd)
}
