// Package dispatcher implements batched campaign dispatch with a bounded
// worker pool, rate limiting, and cooperative stop.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/waxal-io/waxal/app/services"
	"github.com/waxal-io/waxal/config"
	"github.com/waxal-io/waxal/models"
	"github.com/waxal-io/waxal/repository"
)

// Engine error constants
var (
	ErrAlreadyDispatching = errors.New("campaign is already being dispatched")
	ErrShuttingDown       = errors.New("dispatcher is shutting down")
)

// Job describes one campaign dispatch run
type Job struct {
	CampaignID   uint
	BulkID       string
	CustomerID   uint
	OwnerLogin   string
	SenderLogin  string
	Channel      models.MessageChannel
	IsTest       bool
	TemplateName string
	Variables    []string
}

// Engine runs campaign dispatches in the background. One campaign is
// dispatched by at most one run at a time; the in_process flag in the store is
// the cross-instance claim, the runs map is the local one.
type Engine interface {
	Dispatch(ctx context.Context, job Job) error
	Stop(ctx context.Context, campaignID uint) (bool, error)
	Running(campaignID uint) bool
	Shutdown(ctx context.Context) error
}

// EngineImpl implements Engine
type EngineImpl struct {
	campaignRepo     repository.CampaignRepository
	messageRepo      repository.MessageRepository
	subscriptionRepo repository.SubscriptionRepository
	transport        services.TransportAdapter
	redis            redis.UniversalClient // optional, nil disables the TTL lock
	cfg              config.DispatcherConfig
	redisPrefix      string
	logger           *log.Logger

	mu       sync.Mutex
	runs     map[uint]*run
	shutdown bool
	wg       sync.WaitGroup
}

// run tracks one in-flight campaign dispatch
type run struct {
	job      Job
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (r *run) signalStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *run) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// NewEngine creates a new dispatch engine
func NewEngine(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	subscriptionRepo repository.SubscriptionRepository,
	transport services.TransportAdapter,
	redisClient redis.UniversalClient,
	cfg config.DispatcherConfig,
	redisPrefix string,
	logger *log.Logger,
) *EngineImpl {
	return &EngineImpl{
		campaignRepo:     campaignRepo,
		messageRepo:      messageRepo,
		subscriptionRepo: subscriptionRepo,
		transport:        transport,
		redis:            redisClient,
		cfg:              cfg,
		redisPrefix:      redisPrefix,
		logger:           logger,
		runs:             make(map[uint]*run),
	}
}

// Dispatch claims the campaign and starts its run loop in the background. It
// returns ErrAlreadyDispatching when the campaign is claimed locally or by
// another instance.
func (e *EngineImpl) Dispatch(ctx context.Context, job Job) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrShuttingDown
	}
	if _, exists := e.runs[job.CampaignID]; exists {
		e.mu.Unlock()
		return ErrAlreadyDispatching
	}
	r := &run{
		job:  job,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	e.runs[job.CampaignID] = r
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.runs, job.CampaignID)
		e.mu.Unlock()
		close(r.done)
	}

	claimed, err := e.campaignRepo.ClaimDispatch(ctx, job.CampaignID)
	if err != nil {
		release()
		return fmt.Errorf("failed to claim campaign %d: %w", job.CampaignID, err)
	}
	if !claimed {
		release()
		return ErrAlreadyDispatching
	}

	if ok, err := e.acquireLock(ctx, job.CampaignID); err != nil || !ok {
		_ = e.campaignRepo.ReleaseDispatch(ctx, job.CampaignID)
		release()
		if err != nil {
			return fmt.Errorf("failed to acquire dispatch lock for campaign %d: %w", job.CampaignID, err)
		}
		return ErrAlreadyDispatching
	}

	e.wg.Add(1)
	activeCampaigns.Inc()
	go e.runLoop(r)

	return nil
}

// Stop signals the campaign's run to cease claiming new batches and waits for
// the in-flight batch to drain. It returns false when no run is active here.
func (e *EngineImpl) Stop(ctx context.Context, campaignID uint) (bool, error) {
	e.mu.Lock()
	r, exists := e.runs[campaignID]
	e.mu.Unlock()
	if !exists {
		return false, nil
	}

	r.signalStop()
	select {
	case <-r.done:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// Running reports whether this instance is currently dispatching the campaign
func (e *EngineImpl) Running(campaignID uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, exists := e.runs[campaignID]
	return exists
}

// Shutdown stops accepting dispatches, signals every run, and waits for all
// in-flight batches to drain.
func (e *EngineImpl) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.shutdown = true
	for _, r := range e.runs {
		r.signalStop()
	}
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *EngineImpl) lockKey(campaignID uint) string {
	return fmt.Sprintf("%sdispatch:lock:%d", e.redisPrefix, campaignID)
}

// acquireLock takes the cross-instance TTL lock. Without redis the in_process
// claim in the store is the only lock, which is enough for single-node
// deployments.
func (e *EngineImpl) acquireLock(ctx context.Context, campaignID uint) (bool, error) {
	if e.redis == nil {
		return true, nil
	}
	return e.redis.SetNX(ctx, e.lockKey(campaignID), "1", e.cfg.LockTTL).Result()
}

func (e *EngineImpl) releaseLock(ctx context.Context, campaignID uint) {
	if e.redis == nil {
		return
	}
	if err := e.redis.Del(ctx, e.lockKey(campaignID)).Err(); err != nil {
		e.logger.Printf("campaign %d: failed to release dispatch lock: %v", campaignID, err)
	}
}
