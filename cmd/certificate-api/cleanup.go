package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"certificate-studio/certificate-backend/internal/bulk"
	"certificate-studio/certificate-backend/internal/config"
	"certificate-studio/certificate-backend/pkg/storage"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete bulk download archives older than the retention window",
	RunE:  runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	archives, err := storage.NewDisk(cfg.Storage.ArchiveDir)
	if err != nil {
		return err
	}

	cleaner := bulk.NewCleaner(archives, bulk.NewRegistry(), cfg.Storage.ArchiveRetention.Duration, cfg.Storage.CleanupSchedule, nil, logger)
	fmt.Printf("Removed %d expired archive(s)\n", cleaner.RunOnce())
	return nil
}
