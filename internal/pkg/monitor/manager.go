package monitor

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/everkeep/everkeep/app/repository"
	"github.com/everkeep/everkeep/internal/pkg/consensus"
	"github.com/everkeep/everkeep/internal/pkg/env"
	"github.com/everkeep/everkeep/internal/pkg/lifecycle"
	"github.com/everkeep/everkeep/internal/pkg/metrics/counter"
	"github.com/everkeep/everkeep/internal/pkg/notify"
)

// Manager runs the trigger monitor on a fixed interval in the background.
type Manager struct {
	monitor            *Monitor
	sweepTicker        *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global monitor manager (singleton). It wires the
// monitor against the global repositories and the given emitter.
func GetManager(emitter notify.Emitter) *Manager {
	managerOnce.Do(func() {
		repos := repository.GetGlobalRepositories()
		lc := lifecycle.NewService(repos.Trigger, repos.Vault)
		cs := consensus.NewService(repos.Executor)
		globalManager = &Manager{
			monitor: New(repos, lc, cs, emitter),
			stopCh:  make(chan struct{}),
		}
	})
	return globalManager
}

// GetMonitor returns the managed monitor
func (m *Manager) GetMonitor() *Monitor {
	return m.monitor
}

// Start starts the periodic sweep
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true

	interval := sweepInterval()
	log.Infof("[Monitor Manager] Starting trigger sweep (interval: %v)", interval)

	m.sweepTicker = time.NewTicker(interval)
	m.wg.Add(1)
	go m.sweepWorker()

	// Flush buffered view counters (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[Monitor Manager] Started successfully")
}

// Stop stops the periodic sweep
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Monitor Manager] Stopping trigger sweep...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	log.Info("[Monitor Manager] Stopped successfully")
}

// sweepWorker runs the full trigger sweep on every tick
func (m *Manager) sweepWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			log.Info("[Monitor Manager] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			log.Debug("[Monitor Manager] Running trigger sweep")
			if err := m.monitor.RunOnce(); err != nil {
				log.Errorf("[Monitor Manager] Sweep finished with errors: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes buffered counters from Redis to the DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Monitor Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Monitor Manager] Error flushing counters: %v", err)
			}
		}
	}
}

func sweepInterval() time.Duration {
	return time.Duration(env.GetEnvInt("MONITOR_INTERVAL_MINUTES", 60)) * time.Minute
}
