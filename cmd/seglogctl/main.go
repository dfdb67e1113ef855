// Command seglogctl inspects and maintains a seglog log directory.
package main

import (
	"fmt"
	"os"

	"github.com/lixenwraith/seglog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	overrides  []string
)

var rootCmd = &cobra.Command{
	Use:           "seglogctl",
	Short:         "Maintain seglog log directories",
	Long:          `Inspect sizes, evict, archive and upload the segment files written by a seglog logger.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML file with a [seglog] table")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override a config key, e.g. --set log_dir=/var/log/app")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seglogctl: %v\n", err)
		os.Exit(1)
	}
}

// openLogger builds a quiet logger over the configured directories.
// It owns its queue so shutting it down leaves nothing behind.
func openLogger(storage seglog.Storage) (*seglog.Logger, error) {
	cfg := seglog.DefaultConfig()
	if configPath != "" {
		loaded, err := seglog.NewConfigFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	b := seglog.NewBuilder().
		Config(cfg).
		Override(overrides...).
		Debug(false).
		Registry(seglog.NewRegistry()).
		DedicatedQueue()
	if storage != nil {
		b = b.Storage(storage)
	}
	return b.Build()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
