package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"task-scheduler-service/internal/api"
	"task-scheduler-service/internal/config"
	"task-scheduler-service/internal/datasync"
	"task-scheduler-service/internal/events"
	"task-scheduler-service/internal/executors"
	"task-scheduler-service/internal/models"
	"task-scheduler-service/internal/repository"
	"task-scheduler-service/internal/scheduler"
	"task-scheduler-service/internal/services"
	"task-scheduler-service/internal/telemetry"
	"task-scheduler-service/pkg/db"
	"task-scheduler-service/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8888", "HTTP listen address")
	serveCmd.Flags().Bool("kafka-enabled", false, "publish execution events to kafka")
	serveCmd.Flags().String("kafka-brokers", events.DefaultBrokers, "comma-separated kafka broker addresses")
	serveCmd.Flags().String("kafka-topic", events.DefaultTopic, "kafka topic for execution events")
	serveCmd.Flags().Int("max-concurrent-runs", 16, "bound on concurrently running executions")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics server address")

	bindFlag("server.addr", serveCmd.Flags(), "addr")
	bindFlag("kafka.enabled", serveCmd.Flags(), "kafka-enabled")
	bindFlag("kafka.brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("kafka.topic", serveCmd.Flags(), "kafka-topic")
	bindFlag("engine.max_concurrent_runs", serveCmd.Flags(), "max-concurrent-runs")
	bindFlag("telemetry.addr", serveCmd.Flags(), "metrics-addr")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := logging.New(cfg.Log)

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := db.AutoMigrate(gormDB, &models.ScheduledTask{}, &models.TaskExecution{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tasks := repository.NewTaskRepository(gormDB)
	execs := repository.NewExecutionRepository(gormDB)

	script := executors.NewScriptExecutor(logger, cfg.Engine.ScriptTimeout)
	data := executors.NewDataSyncExecutor(datasync.NewNoop(logger), logger)
	common := executors.NewCommonExecutor(script, data)
	workflow := executors.NewWorkflowExecutor(tasks, logger)
	registry := executors.NewRegistry()
	registry.Register(common)
	registry.RegisterAs(models.TaskTypeManual, common)
	registry.Register(workflow)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.BrokerList(), cfg.Kafka.Topic, logger)
	}

	engine := services.NewEngine(tasks, execs, registry, publisher, cfg.Engine.MaxConcurrentRuns, nil, logger)
	workflow.SetRunner(engine)

	manager, err := scheduler.NewManager(engine.Dispatch, nil, logger)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	svc := services.NewTaskService(tasks, execs, manager, engine, registry, logger)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = svc.Bootstrap(bootCtx)
	bootCancel()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	manager.Start()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	if cfg.Telemetry.Enabled {
		telemetry.StartServer(runCtx, cfg.Telemetry.Addr, logger)
	}

	hlog.SetLevel(hlog.LevelWarn)
	h := server.Default(
		server.WithHostPorts(cfg.Server.Addr),
		server.WithExitWaitTime(5*time.Second),
	)
	api.RegisterRoutes(h, api.NewTaskHandler(svc, logger), api.NewExecutionHandler(svc, logger))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logger.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http server shutdown error")
		}
		if err := manager.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("scheduler shutdown error")
		}
		engine.Shutdown(shutdownCtx)
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("event publisher close error")
		}
		runCancel()
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("db_driver", cfg.Database.Driver).
		Int("max_concurrent_runs", cfg.Engine.MaxConcurrentRuns).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("task scheduler service starting")
	h.Spin()
	logger.Info().Msg("stopped")
	return nil
}
