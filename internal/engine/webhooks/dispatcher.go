package webhooks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"quimera/internal/platform/config"
	"quimera/internal/platform/models"
	"quimera/internal/platform/repositories"
)

type Dispatcher struct {
	webhooks  *repositories.WebhookRepository
	deliverer *Deliverer
	backoff   time.Duration
}

func NewDispatcher(webhooks *repositories.WebhookRepository, deliverer *Deliverer, cfg config.WebhooksConfig) *Dispatcher {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Dispatcher{
		webhooks:  webhooks,
		deliverer: deliverer,
		backoff:   backoff,
	}
}

// Dispatch fans an event out to every enabled config of the tenant that
// subscribes to it, waits for all deliveries to settle and swallows
// individual failures. One dead endpoint must not affect the others or the
// caller.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, event string, data interface{}) {
	configs, err := d.webhooks.ListEnabledForEvent(tenantID, event)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Str("event", event).Msg("failed to load webhook configs")
		return
	}
	if len(configs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg *models.WebhookConfig) {
			defer wg.Done()
			d.deliverWithRetry(ctx, cfg, event, data)
		}(cfg)
	}
	wg.Wait()
}

// deliverWithRetry honors the config's retry budget: up to RetryCount
// attempts with exponential backoff, stopping on the first success. Every
// attempt is logged with its own attempt number.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, cfg *models.WebhookConfig, event string, data interface{}) {
	attempts := cfg.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result := d.deliverer.Deliver(ctx, cfg, event, data, attempt)
		if result.Success {
			return
		}
		if attempt == attempts {
			log.Warn().
				Str("webhook_id", cfg.ID).
				Str("event", event).
				Int("attempts", attempts).
				Str("error", result.Error).
				Msg("webhook delivery exhausted retries")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.backoff << (attempt - 1)):
		}
	}
}
