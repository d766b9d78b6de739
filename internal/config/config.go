// Package config centralizes the runtime configuration of the loan
// evaluation worker. Values come from command-line flags or environment
// variables, with defaults suitable for local development against the
// docker-compose stack.
package config

import (
	"fmt"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
)

// Config holds every tunable of the worker process: the Temporal and
// Redis endpoints, the downstream service URLs, the shared admin
// password, and the retry countdowns.
type Config struct {
	TemporalHostPort string `arg:"--temporal-host,env:TEMPORAL_HOST_PORT" default:"localhost:7233" help:"Temporal frontend host:port"`

	RedisAddr     string `arg:"--redis-addr,env:REDIS_ADDR" default:"localhost:6379" help:"Redis server address"`
	RedisPassword string `arg:"--redis-password,env:REDIS_PASSWORD" default:"" help:"Redis password"`

	SubmissionStream string `arg:"--submission-stream,env:LOAN_SUBMISSION_STREAM" default:"loan.submissions" help:"stream carrying inbound loan applications"`
	SubmissionGroup  string `arg:"--submission-group,env:LOAN_SUBMISSION_GROUP" default:"loan-orchestrator" help:"consumer group for the submission stream"`
	AuditStream      string `arg:"--audit-stream,env:AUDIT_LOG_STREAM" default:"audit.records" help:"stream receiving audit records"`

	CreditCheckURL   string `arg:"--credit-check-url,env:CREDIT_CHECK_URL" default:"http://localhost:8001/api/v1/credit-check" help:"credit evaluation endpoint"`
	PropertyCheckURL string `arg:"--property-check-url,env:PROPERTY_CHECK_URL" default:"http://localhost:8002/api/v1/property-check" help:"property evaluation endpoint"`
	DecisionURL      string `arg:"--decision-url,env:LOAN_DECISION_URL" default:"http://localhost:8003/api/v1/loan-decision" help:"loan decision endpoint"`
	NotificationURL  string `arg:"--notification-url,env:NOTIFICATION_URL" default:"http://localhost:8004/api/v1/notify" help:"real-time notification gateway endpoint"`
	LoanUpdateURL    string `arg:"--loan-update-url,env:LOAN_UPDATE_URL" default:"http://localhost:8000/api/v1/loans" help:"loan persistence endpoint"`

	AdminPassword string `arg:"--admin-password,env:ADMIN_PASSWORD,required" help:"shared password authenticating the orchestrator to downstream services"`

	// RetryCountdown is the fixed delay between evaluator retry attempts.
	RetryCountdown time.Duration `arg:"--retry-countdown,env:RETRY_COUNTDOWN" default:"10s" help:"fixed delay before each evaluator retry"`

	// CallTimeout bounds each individual downstream HTTP call.
	CallTimeout time.Duration `arg:"--call-timeout,env:CALL_TIMEOUT" default:"30s" help:"per-call timeout for downstream services"`

	LogLevel string `arg:"--log-level,env:LOG_LEVEL" default:"info" help:"zerolog level: trace, debug, info, warn, error"`
}

// Parse reads the configuration from the process arguments and
// environment.
func Parse() (Config, error) {
	var cfg Config
	if err := arg.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ZerologLevel maps the configured level name onto a zerolog level,
// falling back to info for unknown names.
func (c Config) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
