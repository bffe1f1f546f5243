package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"grammartutor/internal/config"
	_ "grammartutor/internal/lessons/english"
	"grammartutor/internal/logger"
)

var (
	// Global flags
	configPath string
	envFile    string
	logMode    string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "English grammar tutor",
	Long: `Grammar Tutor serves English grammar lessons with interactive practice:
multiple choice, fill in the blank, sentence builder and story cloze.

Run "tutor serve" to start the web app, or "tutor practice <lesson>" to
practise in the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		if configPath == "" {
			configPath = os.Getenv("TUTOR_CONFIG")
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logMode != "" {
			cfg.Logging.Mode = logMode
		}
		log, err = logger.New(cfg.Logging.Mode)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
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
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (default $TUTOR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "log mode: dev, prod or test")

	rootCmd.AddCommand(serveCmd, lessonsCmd, validateCmd, practiceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
