package graph

import (
	"log"
	"sync"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

// MemoryGraph is the concurrent dual-zone associative memory graph.
//
// Concepts, the two edge zones, and working memory are each sharded
// concurrent maps; any number of non-overlapping entries may be mutated in
// parallel. The last-consolidation timestamp is a single shared cell under
// reader-writer locking.
type MemoryGraph struct {
	concepts       *shardedMap[core.ConceptID, core.Concept]
	shortTermEdges *shardedMap[core.EdgeKey, core.SynapticEdge]
	longTermEdges  *shardedMap[core.EdgeKey, core.SynapticEdge]

	// Working memory: concept id → most recent touch. Biases plasticity
	// and recall; not a third edge zone.
	workingMemory *shardedMap[core.ConceptID, time.Time]

	config core.MemoryConfig

	consolidationMu   sync.RWMutex
	lastConsolidation time.Time
}

// Stats summarizes the memory system state.
type Stats struct {
	TotalConcepts        int       `msgpack:"total_concepts"`
	ShortTermConnections int       `msgpack:"short_term_connections"`
	LongTermConnections  int       `msgpack:"long_term_connections"`
	WorkingMemorySize    int       `msgpack:"working_memory_size"`
	LastConsolidation    time.Time `msgpack:"last_consolidation"`
}

// New creates an empty memory graph with the given configuration.
func New(config core.MemoryConfig) *MemoryGraph {
	return &MemoryGraph{
		concepts:          newShardedMap[core.ConceptID, core.Concept](hashConceptID),
		shortTermEdges:    newShardedMap[core.EdgeKey, core.SynapticEdge](hashEdgeKey),
		longTermEdges:     newShardedMap[core.EdgeKey, core.SynapticEdge](hashEdgeKey),
		workingMemory:     newShardedMap[core.ConceptID, time.Time](hashConceptID),
		config:            config,
		lastConsolidation: time.Now(),
	}
}

// NewWithDefaults creates a graph with the default configuration.
func NewWithDefaults() *MemoryGraph {
	return New(core.DefaultMemoryConfig())
}

// Config returns the active memory configuration.
func (g *MemoryGraph) Config() core.MemoryConfig {
	return g.config
}

// AddConcept inserts a pre-built concept, marks it accessed, and touches
// working memory. Returns the concept id.
func (g *MemoryGraph) AddConcept(concept *core.Concept) core.ConceptID {
	concept.Access()
	id := concept.ID

	g.workingMemory.Set(id, time.Now())
	g.concepts.Set(id, *concept)

	return id
}

// Learn creates a concept from content and inserts it.
func (g *MemoryGraph) Learn(content string) core.ConceptID {
	return g.AddConcept(core.NewConcept(content))
}

// Associate creates or strengthens the directed association from → to.
//
// An edge found in short-term is strengthened there; an edge found in
// long-term is strengthened in place and stays long-term. Only a missing
// edge is created, always in short-term at the initial weight. Both
// endpoints are refreshed in working memory.
func (g *MemoryGraph) Associate(from, to core.ConceptID) error {
	if !g.concepts.Contains(from) {
		return core.ErrConceptNotFound
	}
	if !g.concepts.Contains(to) {
		return core.ErrConceptNotFound
	}

	key := core.EdgeKey{From: from, To: to}

	if g.shortTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
		e.Activate(g.config.LearningRate)
		return e
	}) {
		// strengthened in short-term
	} else if g.longTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
		e.Activate(g.config.LearningRate)
		return e
	}) {
		// reactivated in long-term
	} else {
		g.shortTermEdges.Set(key, *core.NewEdge(from, to))
	}

	now := time.Now()
	g.workingMemory.Set(from, now)
	g.workingMemory.Set(to, now)

	return nil
}

// AssociateBidirectional associates a → b then b → a.
func (g *MemoryGraph) AssociateBidirectional(a, b core.ConceptID) error {
	if err := g.Associate(a, b); err != nil {
		return err
	}
	return g.Associate(b, a)
}

// AccessConcept marks a concept as accessed, refreshes working memory, and
// strengthens every incident edge in both zones.
func (g *MemoryGraph) AccessConcept(id core.ConceptID) error {
	if !g.concepts.Update(id, func(c core.Concept) core.Concept {
		c.Access()
		return c
	}) {
		return core.ErrConceptNotFound
	}

	g.workingMemory.Set(id, time.Now())
	g.strengthenIncidentEdges(id)

	return nil
}

// strengthenIncidentEdges activates every edge touching the concept.
func (g *MemoryGraph) strengthenIncidentEdges(id core.ConceptID) {
	for _, zone := range []*shardedMap[core.EdgeKey, core.SynapticEdge]{g.shortTermEdges, g.longTermEdges} {
		var incident []core.EdgeKey
		zone.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
			if key.From == id || key.To == id {
				incident = append(incident, key)
			}
			return true
		})
		for _, key := range incident {
			zone.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
				e.Activate(g.config.LearningRate)
				return e
			})
		}
	}
}

// GetConcept returns a copy of the concept, if present.
func (g *MemoryGraph) GetConcept(id core.ConceptID) (core.Concept, bool) {
	return g.concepts.Get(id)
}

// AllConceptIDs returns a snapshot of every concept id.
func (g *MemoryGraph) AllConceptIDs() []core.ConceptID {
	return g.concepts.Keys()
}

// GetEdge returns a copy of the edge in the given zone.
func (g *MemoryGraph) GetEdge(key core.EdgeKey, zone core.MemoryZone) (core.SynapticEdge, bool) {
	return g.zone(zone).Get(key)
}

// FindEdge locates an edge key in either zone, short-term first.
func (g *MemoryGraph) FindEdge(key core.EdgeKey) (core.SynapticEdge, core.MemoryZone, bool) {
	if e, ok := g.shortTermEdges.Get(key); ok {
		return e, core.ZoneShortTerm, true
	}
	if e, ok := g.longTermEdges.Get(key); ok {
		return e, core.ZoneLongTerm, true
	}
	return core.SynapticEdge{}, core.ZoneShortTerm, false
}

// WorkingMemoryTimestamp returns the last touch time for a concept, if any.
func (g *MemoryGraph) WorkingMemoryTimestamp(id core.ConceptID) (time.Time, bool) {
	return g.workingMemory.Get(id)
}

// RemoveConcept removes a concept, its working-memory entry, and every
// incident edge in both zones. Returns false if the concept was absent.
func (g *MemoryGraph) RemoveConcept(id core.ConceptID) bool {
	if !g.concepts.Delete(id) {
		return false
	}
	g.workingMemory.Delete(id)
	g.removeIncidentEdges(id)
	return true
}

// removeIncidentEdges cascade-removes every edge touching the concept.
// Two-phase: collect keys under iteration, then delete.
func (g *MemoryGraph) removeIncidentEdges(id core.ConceptID) {
	for _, zone := range []*shardedMap[core.EdgeKey, core.SynapticEdge]{g.shortTermEdges, g.longTermEdges} {
		var incident []core.EdgeKey
		zone.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
			if key.From == id || key.To == id {
				incident = append(incident, key)
			}
			return true
		})
		for _, key := range incident {
			zone.Delete(key)
		}
	}
}

// GetStats returns a point-in-time statistics snapshot.
func (g *MemoryGraph) GetStats() Stats {
	g.consolidationMu.RLock()
	last := g.lastConsolidation
	g.consolidationMu.RUnlock()

	return Stats{
		TotalConcepts:        g.concepts.Len(),
		ShortTermConnections: g.shortTermEdges.Len(),
		LongTermConnections:  g.longTermEdges.Len(),
		WorkingMemorySize:    g.workingMemory.Len(),
		LastConsolidation:    last,
	}
}

// ShouldConsolidate reports whether the configured consolidation interval
// has elapsed since the last run.
func (g *MemoryGraph) ShouldConsolidate() bool {
	g.consolidationMu.RLock()
	last := g.lastConsolidation
	g.consolidationMu.RUnlock()

	return time.Since(last) > g.config.ConsolidationInterval()
}

// zone maps a zone tag to its edge table.
func (g *MemoryGraph) zone(z core.MemoryZone) *shardedMap[core.EdgeKey, core.SynapticEdge] {
	if z == core.ZoneLongTerm {
		return g.longTermEdges
	}
	return g.shortTermEdges
}

// ---------------------------------------------------------------------------
// Load/snapshot surface used by the persistence facade.
// ---------------------------------------------------------------------------

// InsertConceptRaw inserts a concept exactly as given, without touching
// access metadata or working memory. Used when rebuilding from storage.
func (g *MemoryGraph) InsertConceptRaw(concept core.Concept) {
	g.concepts.Set(concept.ID, concept)
}

// InsertEdgeRaw inserts an edge into the given zone exactly as given.
func (g *MemoryGraph) InsertEdgeRaw(edge core.SynapticEdge, zone core.MemoryZone) {
	g.zone(zone).Set(edge.Key(), edge)
}

// InsertWorkingMemoryRaw inserts a working-memory timestamp as given.
func (g *MemoryGraph) InsertWorkingMemoryRaw(id core.ConceptID, ts time.Time) {
	g.workingMemory.Set(id, ts)
}

// SnapshotConcepts returns copies of every concept.
func (g *MemoryGraph) SnapshotConcepts() []core.Concept {
	out := make([]core.Concept, 0, g.concepts.Len())
	g.concepts.Range(func(_ core.ConceptID, c core.Concept) bool {
		out = append(out, c)
		return true
	})
	return out
}

// SnapshotEdges returns copies of every edge in the given zone.
func (g *MemoryGraph) SnapshotEdges(zone core.MemoryZone) []core.SynapticEdge {
	table := g.zone(zone)
	out := make([]core.SynapticEdge, 0, table.Len())
	table.Range(func(_ core.EdgeKey, e core.SynapticEdge) bool {
		out = append(out, e)
		return true
	})
	return out
}

// SnapshotWorkingMemory returns copies of every working-memory entry.
func (g *MemoryGraph) SnapshotWorkingMemory() map[core.ConceptID]time.Time {
	out := make(map[core.ConceptID]time.Time, g.workingMemory.Len())
	g.workingMemory.Range(func(id core.ConceptID, ts time.Time) bool {
		out[id] = ts
		return true
	})
	return out
}

// Clear drops every concept, edge, and working-memory entry. Used before a
// restore-and-reload cycle.
func (g *MemoryGraph) Clear() {
	g.concepts.Clear()
	g.shortTermEdges.Clear()
	g.longTermEdges.Clear()
	g.workingMemory.Clear()
	log.Println("memory graph cleared")
}

// markConsolidated updates the shared last-consolidation cell.
func (g *MemoryGraph) markConsolidated() {
	g.consolidationMu.Lock()
	g.lastConsolidation = time.Now()
	g.consolidationMu.Unlock()
}
