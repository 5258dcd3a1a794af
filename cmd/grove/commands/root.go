package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/grovekit/grove/internal/config"
	"github.com/grovekit/grove/internal/printer"
	"github.com/grovekit/grove/internal/resolver"
	"github.com/grovekit/grove/pkg/tagstore"
)

var (
	version string
	commit  string
	date    string
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grove",
	Short: "Grove - Formula and tag template engine",
	Long: `Grove manages hierarchical tags, formulas with $-variables, and the
bindings that map each variable to a concrete tag per context.

Formulas can be captured into templates and stamped onto tags, cloning the
dependent tag sub-tree with fresh identifiers so each instance diverges
independently. All state lives in Redis, namespaced per instance.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to grove.yml")
}

// openStore loads configuration and connects to the backing Redis.
// Callers must Close() the returned client.
func openStore(ctx context.Context) (*tagstore.Client, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Fix grove.yml or pass --config pointing at a valid file"},
		)
	}

	store, err := tagstore.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, printer.Error(
			"cannot reach Redis",
			fmt.Sprintf("No Redis server responded at %s.", cfg.Redis.Addr),
			[]string{"Start Redis, or point redis.addr in grove.yml at a running server"},
		)
	}
	return store, nil
}

// resolveID resolves a possibly-shortened entity ID, rendering ambiguity
// with the full candidate list.
func resolveID(ctx context.Context, store *tagstore.Client, entity, shortID string) (string, error) {
	id, err := resolver.ResolveID(ctx, store, entity, shortID)
	if err != nil {
		if ambiguous, ok := err.(*resolver.AmbiguousError); ok {
			return "", printer.Error(
				"ambiguous ID",
				resolver.FormatAmbiguousError(ambiguous),
				nil,
			)
		}
		return "", err
	}
	return id, nil
}

// shortID renders the first 8 characters of a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
