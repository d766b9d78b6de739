// Package worker provides initialization and registration utilities for
// the loan evaluation Temporal worker. Construction happens once at
// startup so the activity packages stay focused on pure activity logic.
package worker

import (
	"github.com/redis/go-redis/v9"

	internalaudit "loanflow/internal/audit"
	"loanflow/internal/clients"
	"loanflow/internal/config"
	pkgaudit "loanflow/pkg/audit"
)

// Dependencies bundles the constructed service clients and the audit
// emitter for injection into the activity packages.
type Dependencies struct {
	Evaluator *clients.EvaluatorClient
	Decision  *clients.DecisionClient
	Notifier  *clients.NotificationClient
	Persister *clients.PersistenceClient
	Emitter   pkgaudit.Emitter
}

// BuildDependencies constructs the downstream clients from configuration.
// The Redis client is shared with the submission listener; passing nil
// disables audit emission, which tests use.
func BuildDependencies(cfg config.Config, redisClient redis.Cmdable) Dependencies {
	deps := Dependencies{
		Evaluator: clients.NewEvaluatorClient(cfg.CallTimeout),
		Decision:  clients.NewDecisionClient(cfg.DecisionURL, cfg.CallTimeout),
		Notifier:  clients.NewNotificationClient(cfg.NotificationURL, cfg.AdminPassword, cfg.CallTimeout),
		Persister: clients.NewPersistenceClient(cfg.LoanUpdateURL, cfg.AdminPassword, cfg.CallTimeout),
		Emitter:   pkgaudit.NewNoOpEmitter(),
	}
	if redisClient != nil {
		deps.Emitter = internalaudit.NewStreamEmitter(redisClient, cfg.AuditStream)
	}
	return deps
}
