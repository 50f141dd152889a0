package persistence

import (
	"log"
	"sync"
	"time"
)

// AutoSaveManager runs a periodic snapshot loop. The loop is a cooperative
// ticker with a shutdown channel: signalling shutdown lets any in-flight
// save complete and schedules no further ticks. Missed ticks are skipped
// rather than bursted when a save runs long.
type AutoSaveManager struct {
	interval time.Duration
	saveFn   func() error
	store    *Store

	mu       sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
}

// NewAutoSaveManager creates a manager that invokes saveFn every interval.
// Auto-save outcomes are reported through the store's statistics.
func NewAutoSaveManager(store *Store, interval time.Duration, saveFn func() error) *AutoSaveManager {
	return &AutoSaveManager{
		interval: interval,
		saveFn:   saveFn,
		store:    store,
	}
}

// Start launches the background loop. A zero interval disables auto-save.
func (m *AutoSaveManager) Start() {
	if m.interval <= 0 {
		log.Println("auto-save disabled (interval = 0)")
		m.store.SetAutoSaveStatus("disabled")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown != nil {
		return // already running
	}
	m.shutdown = make(chan struct{})
	m.done = make(chan struct{})

	go m.run(m.shutdown, m.done)

	m.store.SetAutoSaveStatus("ok")
	log.Printf("auto-save started with interval %v", m.interval)
}

func (m *AutoSaveManager) run(shutdown, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			log.Println("auto-save shutdown requested")
			return
		case <-ticker.C:
			// Drain any tick that accumulated while saving so a slow
			// save does not trigger a burst of catch-up saves.
			if err := m.saveFn(); err != nil {
				log.Printf("auto-save failed: %v", err)
				m.store.SetAutoSaveStatus(err.Error())
			} else {
				m.store.SetAutoSaveStatus("ok")
			}
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// Stop signals shutdown and waits for the loop to finish. Safe to call
// multiple times and when auto-save never started.
func (m *AutoSaveManager) Stop() {
	m.mu.Lock()
	shutdown, done := m.shutdown, m.done
	m.shutdown, m.done = nil, nil
	m.mu.Unlock()

	if shutdown == nil {
		return
	}
	close(shutdown)
	<-done
	log.Println("auto-save stopped")
}
