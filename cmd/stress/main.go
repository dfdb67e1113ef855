package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/seglog"
)

const (
	maxMessageSize = 2000
	configFile     = "stress_config.toml"
)

// Example TOML content for stress test
var tomlContent = `
# Example stress_config.toml
[seglog]
  name = "stress_test"
  debug = false
  write_to_file = true
  log_dir = "./logs"
  archive_dir = "./logs_archive"
  segment_width_hours = 1
  buffer_entries = 20
  queue_size = 4096
  flush_interval_ms = 50
  retention_bytes = 20971520 # 20MB, forces evictions during the run
  eviction_policy = "oldest"
  internal_errors_to_stderr = true
`

var levels = []seglog.Level{
	seglog.LevelDebug,
	seglog.LevelInfo,
	seglog.LevelWarn,
	seglog.LevelError,
	seglog.LevelFatal,
}

func generateRandomMessage(r *rand.Rand, size int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	var sb strings.Builder
	sb.Grow(size)
	for i := 0; i < size; i++ {
		sb.WriteByte(chars[r.Intn(len(chars))])
	}
	return sb.String()
}

// logBurst simulates a burst of logging activity from one producer
func logBurst(logger *seglog.Logger, r *rand.Rand, burstID, perBurst int) {
	entry := logger.Tag(fmt.Sprintf("burst-%d", burstID%16))
	for i := 0; i < perBurst; i++ {
		level := levels[r.Intn(len(levels))]
		msg := generateRandomMessage(r, r.Intn(maxMessageSize)+10)
		entry.Log(level, msg, "bst", burstID, "seq", i)
	}
}

func main() {
	workers := flag.Int("workers", 64, "concurrent producers")
	bursts := flag.Int("bursts", 200, "total bursts")
	perBurst := flag.Int("per-burst", 500, "records per burst")
	flag.Parse()

	fmt.Println("--- seglog Stress Test ---")

	if err := os.WriteFile(configFile, []byte(tomlContent), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	_ = os.RemoveAll("./logs") // Clean previous run

	cfg, err := seglog.NewConfigFromFile(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := seglog.NewBuilder().Config(cfg).DedicatedQueue().Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logger initialized. Logs will be written to: %s\n", cfg.LogDir)

	// Retention runs concurrently with the producers
	stopRetention := make(chan struct{})
	var retentionWG sync.WaitGroup
	retentionWG.Add(1)
	go func() {
		defer retentionWG.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopRetention:
				return
			case <-ticker.C:
				if _, err := logger.CheckAndEvict(); err != nil {
					fmt.Fprintf(os.Stderr, "\nretention: %v\n", err)
				}
			}
		}
	}()

	fmt.Printf("Starting stress test: %d workers, %d bursts, %d records/burst.\n", *workers, *bursts, *perBurst)
	start := time.Now()

	burstChan := make(chan int, *bursts)
	for i := 0; i < *bursts; i++ {
		burstChan <- i
	}
	close(burstChan)

	var completed atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))
			for burstID := range burstChan {
				logBurst(logger, r, burstID, *perBurst)
				if done := completed.Add(1); done%10 == 0 || done == int64(*bursts) {
					fmt.Printf("\rProgress: %d/%d bursts completed", done, *bursts)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Println()

	close(stopRetention)
	retentionWG.Wait()

	if err := logger.Shutdown(5 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
	}

	stats := logger.Stats()
	total := *bursts * *perBurst
	fmt.Printf("Done in %v (%.0f records/s)\n", elapsed, float64(total)/elapsed.Seconds())
	fmt.Printf("Records: %d  Persisted: %d  Dropped: %d  Evictions: %d\n",
		stats.Records, stats.Persisted, stats.Dropped, stats.Evictions)
	fmt.Printf("Queue: enqueued=%d flushed=%d flushes=%d write_errors=%d files=%d\n",
		stats.Queue.Enqueued, stats.Queue.Flushed, stats.Queue.Flushes, stats.Queue.WriteErrors, stats.Queue.FilesOpened)
}
