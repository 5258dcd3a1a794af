package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/printer"
)

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Manage assets (top-level groupings)",
}

var assetType string

var assetCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		asset, err := store.CreateAsset(ctx, args[0], assetType)
		if err != nil {
			return err
		}
		printer.Success("created asset %s (%s)\n", asset.Name, shortID(asset.ID))
		return nil
	},
}

var assetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all assets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		assets, err := store.ListAssets(ctx)
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			printer.Info("no assets\n")
			return nil
		}
		printer.Printf("%-10s %-30s %s\n", "ID", "NAME", "TYPE")
		for _, a := range assets {
			printer.Printf("%-10s %-30s %s\n", shortID(a.ID), a.Name, a.Type)
		}
		return nil
	},
}

var assetRenameCmd = &cobra.Command{
	Use:   "rename ASSET_ID NAME",
	Short: "Rename an asset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveID(ctx, store, "asset", args[0])
		if err != nil {
			return err
		}
		asset, err := store.RenameAsset(ctx, id, args[1])
		if err != nil {
			return err
		}
		printer.Success("renamed asset %s to %s\n", shortID(asset.ID), asset.Name)
		return nil
	},
}

func init() {
	assetCreateCmd.Flags().StringVar(&assetType, "type", "", "Asset type label")
	assetCmd.AddCommand(assetCreateCmd)
	assetCmd.AddCommand(assetListCmd)
	assetCmd.AddCommand(assetRenameCmd)
	rootCmd.AddCommand(assetCmd)
}
