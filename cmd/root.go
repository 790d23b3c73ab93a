package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/cache"
	"github.com/franckalain/grocerylens/internal/config"
	"github.com/franckalain/grocerylens/internal/database"
	"github.com/franckalain/grocerylens/internal/logger"
	"github.com/franckalain/grocerylens/internal/pipeline"
	"github.com/franckalain/grocerylens/internal/resolver"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *zap.SugaredLogger
	db      *database.SQLiteDB
	remote  resolver.Resolver
	scanner *pipeline.Pipeline
	Version = "dev" // Set at build time: go build -ldflags "-X github.com/franckalain/grocerylens/cmd.Version=v1.0.0"

	newResolver = resolver.NewResolver
)

var RootCmd = &cobra.Command{
	Use:           "grocerylens",
	Short:         "Barcode product lookup, health scoring and shopping-list check-off",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		var err error
		if cfgFile == "" {
			cfgFile = config.GetConfigPath()
		}
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err = logger.NewLogger(cfg.Log.Path, cfg.Log.Level, cfg.Server.Debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		db, err = database.NewSQLiteDB(cfg.Database.Path, log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		remote, err = newResolver(cmd.Context(), cfg.Remote, log)
		if err != nil {
			db.Close()
			db = nil
			return fmt.Errorf("init resolver: %w", err)
		}

		// One-shot commands read through to the database every time.
		memoryEntries := cfg.Cache.MemoryEntries
		if cmd.HasParent() && cmd != serveCmd {
			memoryEntries = 0
		}
		productCache := cache.New(db, cache.Options{
			TTL:           cfg.Cache.TTL.Std(),
			MaxEntries:    cfg.Cache.MaxEntries,
			MemoryEntries: memoryEntries,
		}, log)
		scanner = pipeline.New(productCache, remote, log,
			pipeline.WithLists(db),
			pipeline.WithHistory(db),
		)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closer, ok := remote.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Warnw("Closing resolver failed", "error", err)
			}
		}
		if db != nil {
			if err := db.Close(); err != nil {
				return fmt.Errorf("close database: %w", err)
			}
		}
		if log != nil {
			log.Sync()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of grocerylens",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	RootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "Path to config file (default $GROCERYLENS_CONFIG, config/config.json or config.json)")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(resolveCmd)
	RootCmd.AddCommand(cacheCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}
