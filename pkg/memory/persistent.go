// Package memory combines the in-memory graph with the persistent store:
// load-on-open, opportunistic write-through, periodic auto-save, and
// mutation-event fan-out.
package memory

import (
	"fmt"
	"log"

	"github.com/theQuarky/leafmind/pkg/core"
	"github.com/theQuarky/leafmind/pkg/events"
	"github.com/theQuarky/leafmind/pkg/graph"
	"github.com/theQuarky/leafmind/pkg/persistence"
)

// PersistentMemoryGraph is the durable facade over the memory graph.
//
// Every mutation happens in memory first; the corresponding store write
// follows within the same call when the write-through condition holds.
// Persistence errors are returned but never roll back the in-memory
// mutation; callers needing a durability point use ForceSave.
type PersistentMemoryGraph struct {
	graph       *graph.MemoryGraph
	storage     *persistence.Store
	autoSave    *persistence.AutoSaveManager
	broadcaster *events.Broadcaster

	persistenceConfig core.PersistenceConfig
}

// New opens the store, loads (or persists) the memory configuration,
// rebuilds the in-memory graph from storage, and starts auto-save when the
// interval is non-zero.
func New(memoryConfig core.MemoryConfig, persistenceConfig core.PersistenceConfig) (*PersistentMemoryGraph, error) {
	log.Println("initializing persistent memory graph")

	if err := memoryConfig.Validate(); err != nil {
		return nil, err
	}
	if err := persistenceConfig.Validate(); err != nil {
		return nil, err
	}

	storage, err := persistence.NewStore(persistenceConfig)
	if err != nil {
		return nil, err
	}

	// A previously stored configuration wins over the supplied one so the
	// graph keeps its learned parameters across restarts.
	finalConfig := memoryConfig
	if stored, ok, err := storage.LoadMemoryConfig(); err != nil {
		storage.Close()
		return nil, err
	} else if ok {
		log.Println("loaded existing memory configuration from database")
		finalConfig = stored
	} else {
		if err := storage.StoreMemoryConfig(&memoryConfig); err != nil {
			storage.Close()
			return nil, err
		}
	}

	p := &PersistentMemoryGraph{
		graph:             graph.New(finalConfig),
		storage:           storage,
		broadcaster:       events.NewBroadcaster(),
		persistenceConfig: persistenceConfig,
	}

	if err := p.loadFromStorage(); err != nil {
		storage.Close()
		return nil, err
	}

	p.autoSave = persistence.NewAutoSaveManager(storage, persistenceConfig.AutoSaveInterval(), p.ForceSave)
	p.autoSave.Start()

	log.Println("persistent memory graph initialized")
	return p, nil
}

// NewWithDefaults opens a facade with both default profiles.
func NewWithDefaults() (*PersistentMemoryGraph, error) {
	return New(core.DefaultMemoryConfig(), core.DefaultPersistenceConfig())
}

// NewHighPerformance opens a facade tuned for high-throughput workloads.
func NewHighPerformance() (*PersistentMemoryGraph, error) {
	return New(core.HighPerformanceMemoryConfig(), core.HighPerformancePersistenceConfig())
}

// NewResearch opens a facade tuned for exploratory workloads.
func NewResearch() (*PersistentMemoryGraph, error) {
	return New(core.ResearchMemoryConfig(), core.ResearchPersistenceConfig())
}

// loadFromStorage rebuilds the in-memory graph from the store. A failed
// load leaves the graph empty and returns the error.
func (p *PersistentMemoryGraph) loadFromStorage() error {
	log.Println("loading data from persistent storage")

	concepts, err := p.storage.LoadAllConcepts()
	if err != nil {
		p.graph.Clear()
		return err
	}
	for _, concept := range concepts {
		p.graph.InsertConceptRaw(concept)
	}

	shortTerm, longTerm, err := p.storage.LoadAllEdges()
	if err != nil {
		p.graph.Clear()
		return err
	}
	for _, edge := range shortTerm {
		p.graph.InsertEdgeRaw(edge, core.ZoneShortTerm)
	}
	for _, edge := range longTerm {
		p.graph.InsertEdgeRaw(edge, core.ZoneLongTerm)
	}

	working, err := p.storage.LoadAllWorkingMemory()
	if err != nil {
		p.graph.Clear()
		return err
	}
	for id, ts := range working {
		p.graph.InsertWorkingMemoryRaw(id, ts)
	}

	stats := p.graph.GetStats()
	log.Printf("loaded %d concepts, %d short-term edges, %d long-term edges",
		stats.TotalConcepts, stats.ShortTermConnections, stats.LongTermConnections)

	return nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Learn validates and stores a new concept.
func (p *PersistentMemoryGraph) Learn(content string) (core.ConceptID, error) {
	if err := core.ValidateContent(content); err != nil {
		return core.ConceptID{}, err
	}

	id := p.graph.Learn(content)

	if concept, ok := p.graph.GetConcept(id); ok {
		p.broadcaster.Publish(events.MemoryUpdate{
			Type:      events.ConceptModified,
			ConceptID: id,
			Concept:   &concept,
		})
		if p.shouldImmediatePersist() {
			if err := p.storage.StoreConcept(&concept); err != nil {
				return id, err
			}
		}
	}

	return id, nil
}

// Associate creates or strengthens the directed association.
func (p *PersistentMemoryGraph) Associate(from, to core.ConceptID) error {
	if err := p.graph.Associate(from, to); err != nil {
		return err
	}

	key := core.EdgeKey{From: from, To: to}
	if edge, zone, ok := p.graph.FindEdge(key); ok {
		p.broadcaster.Publish(events.MemoryUpdate{
			Type:        events.AssociationAdded,
			ConceptID:   from,
			Association: &edge,
		})
		if p.shouldImmediatePersist() {
			if err := p.storage.StoreEdge(&edge, zone); err != nil {
				return err
			}
		}
	}

	return nil
}

// AssociateBidirectional associates a → b then b → a.
func (p *PersistentMemoryGraph) AssociateBidirectional(a, b core.ConceptID) error {
	if err := p.Associate(a, b); err != nil {
		return err
	}
	return p.Associate(b, a)
}

// AccessConcept marks a concept accessed and persists its refreshed
// working-memory timestamp.
func (p *PersistentMemoryGraph) AccessConcept(id core.ConceptID) error {
	if err := p.graph.AccessConcept(id); err != nil {
		return err
	}

	if concept, ok := p.graph.GetConcept(id); ok {
		p.broadcaster.Publish(events.MemoryUpdate{
			Type:      events.ConceptAccessed,
			ConceptID: id,
			Concept:   &concept,
		})
	}

	if ts, ok := p.graph.WorkingMemoryTimestamp(id); ok {
		if err := p.storage.StoreWorkingMemory(id, ts); err != nil {
			return err
		}
	}

	return nil
}

// ForgetConcepts removes the concepts from memory and from the store.
func (p *PersistentMemoryGraph) ForgetConcepts(ids []core.ConceptID) (int, error) {
	forgotten := p.graph.ForgetConcepts(ids)

	for _, id := range ids {
		if err := p.storage.DeleteConcept(id); err != nil {
			return forgotten, err
		}
		if err := p.storage.DeleteWorkingMemory(id); err != nil {
			return forgotten, err
		}
	}

	return forgotten, nil
}

// shouldImmediatePersist reports whether the in-memory entity count has
// reached the write-through threshold.
func (p *PersistentMemoryGraph) shouldImmediatePersist() bool {
	stats := p.graph.GetStats()
	total := stats.TotalConcepts + stats.ShortTermConnections + stats.LongTermConnections
	return total >= p.persistenceConfig.MaxCacheSize
}

// ---------------------------------------------------------------------------
// Durability
// ---------------------------------------------------------------------------

// ForceSave writes a full batched snapshot and flushes the store. After it
// returns nil every in-memory entity is durable.
func (p *PersistentMemoryGraph) ForceSave() error {
	log.Println("saving data to persistent storage")

	batch := p.persistenceConfig.BatchSize

	concepts := p.graph.SnapshotConcepts()
	for start := 0; start < len(concepts); start += batch {
		end := min(start+batch, len(concepts))
		if err := p.storage.BatchStoreConcepts(concepts[start:end]); err != nil {
			return err
		}
	}

	for _, zone := range []core.MemoryZone{core.ZoneShortTerm, core.ZoneLongTerm} {
		edges := p.graph.SnapshotEdges(zone)
		for start := 0; start < len(edges); start += batch {
			end := min(start+batch, len(edges))
			if err := p.storage.BatchStoreEdges(edges[start:end], zone); err != nil {
				return err
			}
		}
	}

	if err := p.storage.BatchStoreWorkingMemory(p.graph.SnapshotWorkingMemory()); err != nil {
		return err
	}

	config := p.graph.Config()
	if err := p.storage.StoreMemoryConfig(&config); err != nil {
		return err
	}

	if err := p.storage.Sync(); err != nil {
		return err
	}

	log.Println("successfully saved all data to persistent storage")
	return nil
}

// Backup saves the current state and snapshots the store into backupDir.
func (p *PersistentMemoryGraph) Backup(backupDir string) error {
	if err := p.ForceSave(); err != nil {
		return err
	}
	if err := p.storage.Backup(backupDir); err != nil {
		return err
	}
	log.Println("database backup completed")
	return nil
}

// Restore replaces the database from the latest backup in backupDir and
// reloads the in-memory graph. Auto-save pauses for the duration.
func (p *PersistentMemoryGraph) Restore(backupDir string) error {
	p.autoSave.Stop()

	p.graph.Clear()

	if err := p.storage.Restore(backupDir); err != nil {
		return err
	}
	if err := p.loadFromStorage(); err != nil {
		return err
	}

	p.autoSave.Start()

	log.Println("database restore completed")
	return nil
}

// Compact asks the store to reclaim space.
func (p *PersistentMemoryGraph) Compact() error {
	return p.storage.Compact()
}

// ClearCache drops the store's read-through cache.
func (p *PersistentMemoryGraph) ClearCache() {
	p.storage.ClearCache()
}

// Close stops auto-save, forces a final save, and closes the store.
func (p *PersistentMemoryGraph) Close() error {
	p.autoSave.Stop()

	saveErr := p.ForceSave()

	p.broadcaster.Close()

	if err := p.storage.Close(); err != nil {
		return err
	}
	if saveErr != nil {
		return fmt.Errorf("final save: %w", saveErr)
	}

	log.Println("persistent memory graph closed")
	return nil
}

// ---------------------------------------------------------------------------
// Reads, events, and delegation
// ---------------------------------------------------------------------------

// Subscribe registers for mutation events from now on.
func (p *PersistentMemoryGraph) Subscribe() (<-chan events.MemoryUpdate, func()) {
	return p.broadcaster.Subscribe()
}

// GetConcept returns a copy of the concept, if present.
func (p *PersistentMemoryGraph) GetConcept(id core.ConceptID) (core.Concept, bool) {
	return p.graph.GetConcept(id)
}

// AllConceptIDs returns a snapshot of every concept id.
func (p *PersistentMemoryGraph) AllConceptIDs() []core.ConceptID {
	return p.graph.AllConceptIDs()
}

// GetStats returns memory statistics.
func (p *PersistentMemoryGraph) GetStats() graph.Stats {
	return p.graph.GetStats()
}

// CombinedStats returns memory and persistence statistics together.
func (p *PersistentMemoryGraph) CombinedStats() (graph.Stats, persistence.Stats) {
	return p.graph.GetStats(), p.storage.GetStats()
}

// ShouldConsolidate reports whether the consolidation interval elapsed.
func (p *PersistentMemoryGraph) ShouldConsolidate() bool {
	return p.graph.ShouldConsolidate()
}

// Recall runs associative recall on the underlying graph.
func (p *PersistentMemoryGraph) Recall(sourceID core.ConceptID, query graph.RecallQuery) []graph.RecallResult {
	return p.graph.Recall(sourceID, query)
}

// RecallByContent runs content recall on the underlying graph.
func (p *PersistentMemoryGraph) RecallByContent(content string, query graph.RecallQuery) []graph.RecallResult {
	return p.graph.RecallByContent(content, query)
}

// Consolidate runs a consolidation pass on the underlying graph.
func (p *PersistentMemoryGraph) Consolidate() graph.ConsolidationStats {
	return p.graph.Consolidate()
}

// Graph exposes the underlying memory graph for advanced operations
// (plasticity, forgetting, spreading activation).
func (p *PersistentMemoryGraph) Graph() *graph.MemoryGraph {
	return p.graph
}

// Storage exposes the underlying store for advanced operations.
func (p *PersistentMemoryGraph) Storage() *persistence.Store {
	return p.storage
}
