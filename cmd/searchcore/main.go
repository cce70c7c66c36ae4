// Command searchcore runs the embedded search core: analyze text, search a
// JSON-lines document file, or serve a node fed by Kafka.
//
// Usage:
//
//	searchcore analyze --analyzer russian "СОБАКА была"
//	searchcore search --docs docs.jsonl --index test_nx --fields f1,f2:russian --field f2 '*обак*'
//	searchcore serve --config configs/searchcore.yaml
package main

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "searchcore",
	Short:         "Embedded full-text search core",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

// loadConfig reads --config, applies --log-level and installs the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "searchcore: %v\n", err)
		os.Exit(1)
	}
}
