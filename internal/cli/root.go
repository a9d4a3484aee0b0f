// Package cli wires the cobra command tree: serve, migrate, version.
// Configuration resolves flag over environment over file over default.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"task-scheduler-service/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "task-scheduler",
	Short:        "Task scheduler service for cron, interval, and workflow tasks",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/task-scheduler/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./task-scheduler.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug | info | warn | error")
	rootCmd.PersistentFlags().Bool("log-console", false, "human-readable console logs instead of JSON")
	rootCmd.PersistentFlags().String("db-driver", "sqlite", "database driver: sqlite | mysql")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN (driver default when empty)")

	bindFlag("log.level", rootCmd.PersistentFlags(), "log-level")
	bindFlag("log.console", rootCmd.PersistentFlags(), "log-console")
	bindFlag("database.driver", rootCmd.PersistentFlags(), "db-driver")
	bindFlag("database.dsn", rootCmd.PersistentFlags(), "db-dsn")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("task-scheduler")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/task-scheduler")
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "error reading config file:", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintln(os.Stderr, "config:", v.ConfigFileUsed())
	}
}

func bindFlag(viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q to %q: %v", flagName, viperKey, err))
	}
}
