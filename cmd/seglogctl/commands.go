package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/lixenwraith/seglog"
	"github.com/lixenwraith/seglog/upload/httpstore"
	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show log directory usage and free disk space",
	RunE:  runSize,
}

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Apply the retention policy once",
	Long:  `Compare the log directory against retention_bytes and evict with the configured policy (wipe or oldest).`,
	RunE:  runEvict,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Zip expired segments into archive_dir",
	RunE:  runArchive,
}

var zipCmd = &cobra.Command{
	Use:   "zip <source> <dest.zip>",
	Short: "Zip a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runZip,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <endpoint>",
	Short: "Archive expired segments and POST every pending archive to endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var (
	archiveAll    bool
	zipDelete     bool
	uploadKeep    bool
	uploadTimeout time.Duration
)

func init() {
	archiveCmd.Flags().BoolVar(&archiveAll, "all", false, "zip the whole log directory into one timestamped archive")
	zipCmd.Flags().BoolVar(&zipDelete, "delete", false, "remove the source after a successful zip")
	uploadCmd.Flags().BoolVar(&uploadKeep, "keep", false, "keep archives after upload")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 30*time.Second, "per-request timeout")

	rootCmd.AddCommand(sizeCmd, evictCmd, archiveCmd, zipCmd, uploadCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	logger, err := openLogger(nil)
	if err != nil {
		return err
	}
	defer logger.Shutdown(time.Second)

	cfg := logger.GetConfig()
	size, err := seglog.DirSize(cfg.LogDir)
	if err != nil {
		return err
	}
	fmt.Printf("Log dir:   %s\n", cfg.LogDir)
	fmt.Printf("Size:      %s\n", formatBytes(size))
	if cfg.RetentionBytes > 0 {
		fmt.Printf("Retention: %s (%s)\n", formatBytes(cfg.RetentionBytes), cfg.EvictionPolicy)
	} else {
		fmt.Println("Retention: disabled")
	}
	if free, err := seglog.DiskFree(cfg.LogDir); err == nil {
		fmt.Printf("Disk free: %s\n", formatBytes(free))
	}
	return nil
}

func runEvict(cmd *cobra.Command, args []string) error {
	logger, err := openLogger(nil)
	if err != nil {
		return err
	}
	defer logger.Shutdown(time.Second)

	evicted, err := logger.CheckAndEvict()
	if err != nil {
		return err
	}
	if evicted {
		fmt.Printf("Evicted with policy '%s'\n", logger.GetConfig().EvictionPolicy)
	} else {
		fmt.Println("Under retention limit, nothing evicted")
	}
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	logger, err := openLogger(nil)
	if err != nil {
		return err
	}
	defer logger.Shutdown(time.Second)

	if archiveAll {
		dest, err := logger.ArchiveDirectory()
		if err != nil {
			return err
		}
		fmt.Println(dest)
		return nil
	}

	archived, err := logger.ArchiveExpired()
	for _, dest := range archived {
		fmt.Println(dest)
	}
	return err
}

func runZip(cmd *cobra.Command, args []string) error {
	return seglog.Zip(args[0], args[1], zipDelete)
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts := []httpstore.Option{httpstore.WithTimeout(uploadTimeout)}
	if uploadKeep {
		opts = append(opts, httpstore.KeepArchives())
	}
	store := httpstore.New(args[0], opts...)

	logger, err := openLogger(store)
	if err != nil {
		return err
	}
	defer logger.Shutdown(time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = logger.Upload(ctx)
	fmt.Printf("Uploaded %d, failed %d\n", store.Uploaded(), store.Failed())
	return err
}
