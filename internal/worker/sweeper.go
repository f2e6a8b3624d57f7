package worker

import (
	"context"
	"time"

	"slothold/internal/domain"
	"slothold/internal/keys"
	"slothold/internal/metrics"

	"github.com/rs/zerolog"
)

// Sweeper closes the passive-expiry gap: the store drops expired slot keys
// silently, so nothing would ever tell clients a hold lapsed. Each pass scans
// the live slot keys and broadcasts "available" for every key that vanished
// since the previous pass. An explicit release may cause one duplicate
// broadcast on the next pass, which the fire-and-forget channel tolerates.
type Sweeper struct {
	store       domain.Store
	broadcaster domain.Broadcaster
	interval    time.Duration
	retry       RetryPolicy
	logger      *zerolog.Logger

	known map[string]struct{}
}

func NewSweeper(store domain.Store, broadcaster domain.Broadcaster, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:       store,
		broadcaster: broadcaster,
		interval:    interval,
		retry: RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2,
		},
		logger: logger,
		known:  make(map[string]struct{}),
	}
}

// Run blocks until ctx is canceled. The first pass only establishes the
// baseline of live holds; expiry broadcasts start from the second pass.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("reconciliation sweeper started")

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial sweep failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reconciliation sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep performs one reconciliation pass and returns how many expired holds
// it broadcast. Scan failures are retried with backoff before giving up until
// the next tick.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	slotKeys, err := s.scanWithRetry(ctx)
	if err != nil {
		return 0, err
	}

	current := make(map[string]struct{}, len(slotKeys))
	for _, k := range slotKeys {
		current[k] = struct{}{}
	}

	expired := 0
	for k := range s.known {
		if _, stillHeld := current[k]; stillHeld {
			continue
		}
		datetime, serviceType, ok := keys.ParseSlot(k)
		if !ok {
			s.logger.Warn().Str("key", k).Msg("unparseable slot key, skipping broadcast")
			continue
		}
		s.broadcaster.SlotUpdate(ctx, datetime, serviceType, true, "")
		metrics.IncSweeperExpiry()
		expired++
	}

	if expired > 0 {
		s.logger.Info().Int("expired", expired).Int("held", len(current)).Msg("sweep reconciled expired holds")
	}

	s.known = current
	return expired, nil
}

func (s *Sweeper) scanWithRetry(ctx context.Context) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxRetries; attempt++ {
		slotKeys, err := s.store.ScanKeys(ctx, keys.SlotHoldPattern)
		if err == nil {
			return slotKeys, nil
		}
		lastErr = err
		s.logger.Warn().Err(err).Int("attempt", attempt).Msg("slot key scan failed")

		if attempt < s.retry.MaxRetries {
			if err := s.retry.Wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}
