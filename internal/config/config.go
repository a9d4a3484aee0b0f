// Package config holds the typed runtime configuration. Values come from a
// YAML file, TASKSCHED_* environment variables, and CLI flags, with flags
// winning.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"task-scheduler-service/internal/events"
	"task-scheduler-service/pkg/db"
	"task-scheduler-service/pkg/logging"
)

const EnvPrefix = "TASKSCHED"

type Server struct {
	Addr string
}

type Kafka struct {
	Enabled bool
	Brokers string
	Topic   string
}

// BrokerList splits the comma-separated broker string.
func (k Kafka) BrokerList() []string {
	return strings.Split(k.Brokers, ",")
}

type Engine struct {
	// MaxConcurrentRuns bounds the worker pool shared by scheduled fires,
	// manual triggers, and retries.
	MaxConcurrentRuns int
	// ScriptTimeout caps commands whose config carries no timeout_seconds.
	ScriptTimeout time.Duration
}

type Telemetry struct {
	Enabled bool
	Addr    string
}

type Config struct {
	Server    Server
	Database  db.Config
	Kafka     Kafka
	Engine    Engine
	Telemetry Telemetry
	Log       logging.Config
}

// SetDefaults seeds v before any file or env lookup.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8888")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_queries", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", events.DefaultBrokers)
	v.SetDefault("kafka.topic", events.DefaultTopic)

	v.SetDefault("engine.max_concurrent_runs", 16)
	v.SetDefault("engine.script_timeout_seconds", 3600)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

// BindEnv wires the TASKSCHED_ environment variables, dots replaced by
// underscores (server.addr becomes TASKSCHED_SERVER_ADDR).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the typed configuration out of v.
func Load(v *viper.Viper) Config {
	return Config{
		Server: Server{
			Addr: v.GetString("server.addr"),
		},
		Database: db.Config{
			Driver:     v.GetString("database.driver"),
			DSN:        v.GetString("database.dsn"),
			LogQueries: v.GetBool("database.log_queries"),
		},
		Kafka: Kafka{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: v.GetString("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
		Engine: Engine{
			MaxConcurrentRuns: v.GetInt("engine.max_concurrent_runs"),
			ScriptTimeout:     time.Duration(v.GetInt("engine.script_timeout_seconds")) * time.Second,
		},
		Telemetry: Telemetry{
			Enabled: v.GetBool("telemetry.enabled"),
			Addr:    v.GetString("telemetry.addr"),
		},
		Log: logging.Config{
			Level:   v.GetString("log.level"),
			Console: v.GetBool("log.console"),
		},
	}
}
