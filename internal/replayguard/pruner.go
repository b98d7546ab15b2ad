package replayguard

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"transbot-ops/internal/common/logging"
)

const pruneLockKey = "nonce-prune"

// Locker serialises pruning across replicas. locks.RedsyncLocker satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// PruneObserver receives the number of rows removed by each run.
type PruneObserver interface {
	ObservePrune(deleted int64, err error)
}

type PrunerConfig struct {
	Schedule  string
	Retention time.Duration
	Timeout   time.Duration
}

// Pruner deletes expired nonces on a cron schedule, independently of
// request handling.
type Pruner struct {
	guard    *Guard
	config   PrunerConfig
	locker   Locker
	observer PruneObserver
	logger   logging.Logger
	cron     *cron.Cron
}

// NewPruner validates the schedule. locker and observer may be nil.
func NewPruner(guard *Guard, config PrunerConfig, locker Locker, observer PruneObserver, logger logging.Logger) (*Pruner, error) {
	if config.Retention <= 0 {
		return nil, fmt.Errorf("prune retention must be positive")
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	p := &Pruner{
		guard:    guard,
		config:   config,
		locker:   locker,
		observer: observer,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "nonce_pruner"}),
		cron:     cron.New(),
	}

	if _, err := p.cron.AddFunc(config.Schedule, p.run); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", config.Schedule, err)
	}
	return p, nil
}

// Start begins running the schedule in the background.
func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("Nonce pruning scheduled",
		logging.Field{Key: "schedule", Value: p.config.Schedule},
		logging.Field{Key: "retention", Value: p.config.Retention.String()},
	)
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	if _, err := p.PruneOnce(ctx); err != nil {
		p.logger.Error("Nonce pruning failed", err)
	}
}

// PruneOnce performs a single prune. When a locker is configured and
// another replica holds the lock it returns (0, nil) without touching the
// ledger.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	if p.locker != nil {
		token, err := p.locker.AcquireLock(ctx, pruneLockKey, p.config.Timeout)
		if err != nil {
			p.observe(0, err)
			return 0, err
		}
		if token == "" {
			p.logger.Debug("Nonce pruning skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := p.locker.ReleaseLock(context.Background(), pruneLockKey, token); err != nil {
				p.logger.Warn("Failed to release prune lock", logging.Err(err))
			}
		}()
	}

	deleted, err := p.guard.Prune(ctx, p.config.Retention)
	p.observe(deleted, err)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		p.logger.Info("Pruned expired nonces", logging.Int64("deleted", deleted))
	}
	return deleted, nil
}

func (p *Pruner) observe(deleted int64, err error) {
	if p.observer != nil {
		p.observer.ObservePrune(deleted, err)
	}
}
