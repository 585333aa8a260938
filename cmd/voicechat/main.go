package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/config"
	"github.com/young1lin/voicechat/pkg/logger"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	cfgFile string
	port    int
	showVer bool
)

var rootCmd = &cobra.Command{
	Use:   "voicechat",
	Short: "Voice chat API proxy with web search",
	Long: `An HTTP API that proxies a voice chat front end to hosted
speech-to-text, chat completion and text-to-speech services. Chat
answers can be grounded in live web search results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVer {
			fmt.Printf("voicechat %s (built %s)\n", Version, BuildDate)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger.Info("starting server",
			zap.String("version", Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		defer logger.Sync()

		return runServer(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml if present)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version")
	rootCmd.AddCommand(searchCmd)
}

// loadConfig reads configuration, applies flag overrides and initializes
// the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
