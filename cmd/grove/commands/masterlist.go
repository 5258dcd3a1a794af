package commands

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/ingest"
	"github.com/grovekit/grove/internal/printer"
)

var masterlistCmd = &cobra.Command{
	Use:   "masterlist",
	Short: "Manage master tag catalogues",
}

var masterlistIngestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Ingest a CSV masterlist",
	Long: `Ingest a CSV catalogue of master tags.

The header row must contain a "tag" column; a "type" column and any further
columns are stored with each entry. The whole file lands atomically: a
malformed row or duplicate tag name rejects the entire ingest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return printer.Error(
				"cannot open file",
				err.Error(),
				nil,
			)
		}
		defer f.Close()

		importer := ingest.NewImporter(store)
		list, tags, err := importer.Ingest(ctx, filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		printer.Success("ingested %s: %d master tags (%s)\n", list.FileName, len(tags), shortID(list.ID))
		return nil
	},
}

var masterlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested masterlists, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		lists, err := store.ListMasterlists(ctx)
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			printer.Info("no masterlists\n")
			return nil
		}
		printer.Printf("%-10s %-30s %s\n", "ID", "FILE", "INGESTED")
		for _, m := range lists {
			ts := time.UnixMilli(m.CreatedAtMs).Format(time.RFC3339)
			printer.Printf("%-10s %-30s %s\n", shortID(m.ID), m.FileName, ts)
		}
		return nil
	},
}

var masterlistTagsCmd = &cobra.Command{
	Use:   "tags [MASTERLIST_ID]",
	Short: "List a masterlist's tags (latest masterlist if omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var fileID string
		if len(args) == 1 {
			fileID, err = resolveID(ctx, store, "masterlist", args[0])
			if err != nil {
				return err
			}
		} else {
			latest, err := store.LatestMasterlist(ctx)
			if err != nil {
				return err
			}
			fileID = latest.ID
		}

		tags, err := store.ListMasterTags(ctx, fileID)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			printer.Info("no master tags\n")
			return nil
		}
		printer.Printf("%-10s %-30s %s\n", "ID", "NAME", "TYPE")
		for _, mt := range tags {
			printer.Printf("%-10s %-30s %s\n", shortID(mt.ID), mt.Name, mt.Type)
		}
		return nil
	},
}

func init() {
	masterlistCmd.AddCommand(masterlistIngestCmd)
	masterlistCmd.AddCommand(masterlistListCmd)
	masterlistCmd.AddCommand(masterlistTagsCmd)
	rootCmd.AddCommand(masterlistCmd)
}
