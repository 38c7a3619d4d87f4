package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"voxsh/internal/config"
	"voxsh/internal/logging"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	maxAttempts int
	audioFile   string
	autoAccept  bool
	metricsAddr string

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "voxsh",
	Short: "voxsh - speak or type what you want, get a shell command that does it",
	Long: `voxsh turns a spoken or typed intent into a single shell command,
asks you to confirm it, runs it, and checks whether it did what you asked.

When the command fails, the error is fed back to the language model and a
repaired command is proposed, up to --max-attempts times.

Run without arguments to start the interactive session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = loadConfig(afero.NewOsFs(), cmd)
		if err != nil {
			return err
		}

		debug, categories, level, jsonFormat := cfg.Logging.ToLoggingSettings()
		if verbose {
			debug = true
		}
		if err := logging.Initialize(cfg.GetStateDir(), logging.Settings{
			DebugMode:  debug,
			Categories: categories,
			Level:      level,
			JSONFormat: jsonFormat,
		}); err != nil {
			logger.Warn("File logging disabled", zap.Error(err))
		}
		logging.Boot("voxsh %s: config=%s model=%s max_attempts=%d",
			cmd.Name(), configFilePath(), cfg.LLM.Model, cfg.Resolver.MaxAttempts)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().IntVar(&maxAttempts, "max-attempts", 0, "Attempts per task before giving up (default from config, 10)")
	rootCmd.PersistentFlags().StringVar(&audioFile, "audio-file", "", "Replay raw 16 kHz mono S16_LE PCM instead of the microphone")
	rootCmd.PersistentFlags().BoolVarP(&autoAccept, "yes", "y", false, "Run proposed commands without confirmation")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
// configFilePath returns --config or the default location.
func configFilePath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadConfig(fs afero.Fs, cmd *cobra.Command) (*config.Config, error) {
	path := configFilePath()
	c, err := config.Load(fs, path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("max-attempts") {
		c.Resolver.MaxAttempts = maxAttempts
	}
	if flags.Changed("yes") {
		c.Resolver.AutoAccept = autoAccept
	}
	if flags.Changed("metrics-addr") {
		c.Metrics.Addr = metricsAddr
	}
	logger.Debug("Configuration loaded",
		zap.String("path", path),
		zap.String("model", c.LLM.Model),
		zap.Int("max_attempts", c.Resolver.MaxAttempts))
	return c, nil
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
