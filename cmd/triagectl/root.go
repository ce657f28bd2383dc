package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/david/feedback-triage/internal/config"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/logger"
)

var (
	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "triagectl",
	Short:         "Operate the feedback triage database",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if url := viper.GetString("database-url"); url != "" {
			cfg.DatabaseURL = url
		}
		log, err = logger.New(viper.GetString("log-mode"), "")
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-mode", "dev", "Log mode (dev|prod)")
	_ = viper.BindPFlag("database-url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("log-mode", rootCmd.PersistentFlags().Lookup("log-mode"))

	rootCmd.AddCommand(importCmd, rankingCmd, productsCmd, seedCmd, statsCmd, verifyCmd)
}

// openStore connects and migrates. The caller closes the returned store.
func openStore(ctx context.Context) (*db.Store, func(), error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	return db.NewStore(pool), pool.Close, nil
}
