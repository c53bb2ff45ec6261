package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/ChatFox/app/repository"
	"github.com/gofiber/fiber/v2/log"
)

// PresencePruner drops stale presence records.
type PresencePruner interface {
	Prune(ctx context.Context) (int, error)
}

// ManagerConfig holds the background task intervals
type ManagerConfig struct {
	ReconcileInterval time.Duration
	PruneInterval     time.Duration
}

// Manager manages the job queue and periodic background tasks
type Manager struct {
	queue      *Queue
	reconciler *Reconciler
	pruner     PresencePruner
	queueRepo  repository.QueueRepository
	cfg        ManagerConfig

	reconcileTicker *time.Ticker
	pruneTicker     *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

// NewManager creates a manager. queue may be nil when no Redis is available;
// periodic tasks still run then.
func NewManager(queue *Queue, reconciler *Reconciler, pruner PresencePruner, queueRepo repository.QueueRepository, cfg ManagerConfig) *Manager {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = time.Minute
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 15 * time.Second
	}
	return &Manager{
		queue:      queue,
		reconciler: reconciler,
		pruner:     pruner,
		queueRepo:  queueRepo,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	if m.queue != nil {
		m.queue.Start()
	}

	if m.reconciler != nil {
		m.reconcileTicker = time.NewTicker(m.cfg.ReconcileInterval)
		m.wg.Add(1)
		go m.reconcileWorker(m.reconcileTicker, m.stopCh)
	}

	if m.pruner != nil {
		m.pruneTicker = time.NewTicker(m.cfg.PruneInterval)
		m.wg.Add(1)
		go m.pruneWorker(m.pruneTicker, m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.pruneTicker != nil {
		m.pruneTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	if m.queue != nil {
		m.queue.Stop()
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

// reconcileWorker periodically restores bots of tenants back under quota
func (m *Manager) reconcileWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started quota reconcile worker (interval: %s)", m.cfg.ReconcileInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Quota reconcile worker stopping")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ReconcileInterval)
			if _, err := m.reconciler.RunOnce(ctx); err != nil {
				log.Errorf("[JobQueue Manager] Quota reconcile error: %v", err)
			}
			cancel()
		}
	}
}

// pruneWorker periodically removes stale presence
func (m *Manager) pruneWorker(ticker *time.Ticker, stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Presence prune worker stopping")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PruneInterval)
			if n, err := m.pruner.Prune(ctx); err != nil {
				log.Errorf("[JobQueue Manager] Presence prune error: %v", err)
			} else if n > 0 {
				log.Debugf("[JobQueue Manager] Pruned %d stale presence records", n)
			}
			cancel()
		}
	}
}

// ReconcileNow runs one reconciliation pass outside the ticker.
func (m *Manager) ReconcileNow(ctx context.Context) (int, error) {
	if m.reconciler == nil {
		return 0, nil
	}
	return m.reconciler.RunOnce(ctx)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// QueueStats reports the queue depth for the admin API
type QueueStats struct {
	Pending    int64               `json:"pending"`
	Processing int64               `json:"processing"`
	Stored     int                 `json:"stored"`
	Totals     map[JobStatus]int64 `json:"totals"`
}

// Stats inspects the Redis keys of the queue.
func (m *Manager) Stats(ctx context.Context) (*QueueStats, error) {
	stats := &QueueStats{Totals: map[JobStatus]int64{}}
	if m.queueRepo == nil {
		return stats, nil
	}
	var err error
	if stats.Pending, err = m.queueRepo.ListLength(ctx, JobQueueKey); err != nil {
		return nil, err
	}
	if stats.Processing, err = m.queueRepo.ListLength(ctx, JobProcessingKey); err != nil {
		return nil, err
	}
	keys, err := m.queueRepo.ScanKeys(ctx, JobKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	stats.Stored = len(keys)
	if m.queue != nil {
		if totals, err := m.queue.GetJobStats(ctx); err == nil {
			stats.Totals = totals
		}
	}
	return stats, nil
}

// PurgeFailed deletes the stored data of permanently failed jobs.
func (m *Manager) PurgeFailed(ctx context.Context) (int64, error) {
	if m.queueRepo == nil || m.queue == nil {
		return 0, nil
	}
	keys, err := m.queueRepo.ScanKeys(ctx, JobKeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	var failed []string
	for _, key := range keys {
		job, err := m.queue.GetJob(ctx, key[len(JobKeyPrefix):])
		if err != nil {
			continue
		}
		if job.Status == JobStatusFailed && !job.IsRetryable() {
			failed = append(failed, key)
		}
	}
	n, err := m.queueRepo.DeleteKeys(ctx, failed)
	if err == nil && n > 0 {
		log.Infof("[JobQueue Manager] Purged %d failed jobs", n)
	}
	return n, err
}
