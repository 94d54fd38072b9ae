package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/config"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examd",
		Short:        "Exam session and grading service",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("storage", "", "Storage driver (postgres, memory)")
	pf.String("database-url", "", "PostgreSQL connection string")
	pf.String("redis-url", "", "Redis URL for the exam cache (empty uses an in-process cache)")
	pf.String("environment", "", "Environment name (development, production)")
	pf.String("fixtures", "", "JSON exam fixtures loaded into the memory store")

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), sweepCmd(), classifyCmd(), exportCmd())

	// Bare `examd` serves
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// viperForCmd binds a command's flags and EXAMD_* environment variables to a
// fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("EXAMD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examd")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examd")
	v.AddConfigPath("/etc/examd")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// loadConfig reads the environment (and .env) first, then lets flags, EXAMD_*
// variables and the config file override it.
func loadConfig(cmd *cobra.Command) (*config.Config, *viper.Viper, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	v := viperForCmd(cmd)
	overrideString(v, "storage", &cfg.StorageDriver)
	overrideString(v, "database-url", &cfg.DatabaseURL)
	overrideString(v, "redis-url", &cfg.RedisURL)
	overrideString(v, "environment", &cfg.Environment)
	overrideString(v, "port", &cfg.Port)
	if v.IsSet("sweep-batch") {
		cfg.SweepBatchSize = v.GetInt("sweep-batch")
	}
	if v.IsSet("token-grace") {
		cfg.SessionTokenGrace = v.GetDuration("token-grace")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger := utils.NewSlog(cfg.Environment, os.Stdout)
	slog.SetDefault(logger)

	return cfg, v, logger, nil
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		if value := v.GetString(key); value != "" {
			*dst = value
		}
	}
}

const defaultSweepInterval = 30 * time.Second
