package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"task-scheduler-service/internal/config"
	"task-scheduler-service/internal/models"
	"task-scheduler-service/pkg/db"
	"task-scheduler-service/pkg/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Load(viper.GetViper())
		logger := logging.New(cfg.Log)

		gormDB, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if err := db.AutoMigrate(gormDB, &models.ScheduledTask{}, &models.TaskExecution{}); err != nil {
			return err
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("migrations applied")
		return nil
	},
}
