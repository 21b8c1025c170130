package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-sandwich-bot/internal/storage/migrations"
	pgstore "solana-sandwich-bot/internal/storage/postgres"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	s := cfg.Storage
	if s.PostgresDSN == "" && s.ClickhouseDSN == "" {
		return errors.New("nothing to migrate: set storage.postgres_dsn or storage.clickhouse_dsn")
	}

	if s.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, s.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		applied, err := migrations.RunPostgresMigrations(ctx, pool, logger)
		pool.Close()
		if err != nil {
			return err
		}
		logger.Info("postgres migrations done", zap.Strings("applied", applied))
	}

	if s.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, s.ClickhouseDSN, logger)
		if err != nil {
			return err
		}
		_ = conn.Close()
		logger.Info("clickhouse migrations done")
	}
	return nil
}
