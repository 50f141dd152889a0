package graph

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

// ConsolidationStats reports the outcome of a consolidation pass.
type ConsolidationStats struct {
	PromotedToLongTerm   int
	PrunedWeak           int
	Reactivated          int
	TotalShortTermBefore int
	TotalLongTermAfter   int
}

// Consolidate runs the hippocampus-to-cortex transfer: qualifying
// short-term edges move to long-term (merging with any existing long-term
// edge), inactive non-promoted edges are pruned, interference weakens
// edges of overloaded concepts, and the consolidation timestamp advances.
func (g *MemoryGraph) Consolidate() ConsolidationStats {
	log.Println("starting memory consolidation")

	initialShortTerm := g.shortTermEdges.Len()

	promoted := 0
	pruned := 0
	reactivated := 0

	// Phase 1: partition short-term into promote and prune sets.
	var toPromote, toPrune []core.EdgeKey
	g.shortTermEdges.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
		if g.shouldPromote(&edge) {
			toPromote = append(toPromote, key)
		} else if !edge.IsActive() {
			toPrune = append(toPrune, key)
		}
		return true
	})

	// Phase 2: promote, merging into any existing long-term edge.
	for _, key := range toPromote {
		edge, ok := g.shortTermEdges.Get(key)
		if !ok {
			continue
		}
		g.shortTermEdges.Delete(key)

		if g.longTermEdges.Update(key, func(existing core.SynapticEdge) core.SynapticEdge {
			existing.Weight = core.NewWeight((existing.Weight.Value + edge.Weight.Value) / 2.0)
			if edge.LastAccessed.After(existing.LastAccessed) {
				existing.LastAccessed = edge.LastAccessed
			}
			existing.ActivationCount += edge.ActivationCount
			return existing
		}) {
			reactivated++
		} else {
			g.longTermEdges.Set(key, edge)
			promoted++
		}
	}

	// Phase 3: prune inactive short-term edges.
	for _, key := range toPrune {
		if g.shortTermEdges.Delete(key) {
			pruned++
		}
	}

	// Phase 4: interference between competing memories.
	g.applyInterference()

	// Phase 5: advance the consolidation timestamp.
	g.markConsolidated()

	stats := ConsolidationStats{
		PromotedToLongTerm:   promoted,
		PrunedWeak:           pruned,
		Reactivated:          reactivated,
		TotalShortTermBefore: initialShortTerm,
		TotalLongTermAfter:   g.longTermEdges.Len(),
	}

	log.Printf("memory consolidation completed: %d promoted, %d pruned, %d reactivated",
		promoted, pruned, reactivated)

	return stats
}

// ForceConsolidation triggers consolidation regardless of timing.
func (g *MemoryGraph) ForceConsolidation() ConsolidationStats {
	return g.Consolidate()
}

// shouldPromote checks the five promotion predicates; at least three must
// hold: weight at threshold, activated 3+ times, accessed within 7 days,
// at least 1 hour old, both endpoints frequently accessed.
func (g *MemoryGraph) shouldPromote(edge *core.SynapticEdge) bool {
	now := time.Now()

	criteria := 0
	if edge.Weight.Value >= g.config.ConsolidationThreshold {
		criteria++
	}
	if edge.ActivationCount >= 3 {
		criteria++
	}
	if edge.LastAccessed.After(now.Add(-7 * 24 * time.Hour)) {
		criteria++
	}
	if edge.CreatedAt.Before(now.Add(-time.Hour)) {
		criteria++
	}
	if g.conceptsAreImportant(edge.From, edge.To) {
		criteria++
	}

	return criteria >= 3
}

// conceptsAreImportant reports whether both endpoints have been accessed at
// least five times.
func (g *MemoryGraph) conceptsAreImportant(a, b core.ConceptID) bool {
	const importanceThreshold = 5

	ca, ok := g.concepts.Get(a)
	if !ok || ca.AccessCount < importanceThreshold {
		return false
	}
	cb, ok := g.concepts.Get(b)
	return ok && cb.AccessCount >= importanceThreshold
}

// applyInterference double-decays every short-term edge of concepts with
// more than 50 short-term incidences. Counts are taken once after
// promotion and pruning, not recomputed mid-pass.
func (g *MemoryGraph) applyInterference() {
	const interferenceThreshold = 50

	counts := make(map[core.ConceptID]int)
	g.shortTermEdges.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
		counts[key.From]++
		counts[key.To]++
		return true
	})

	overloaded := make(map[core.ConceptID]struct{})
	for id, count := range counts {
		if count > interferenceThreshold {
			overloaded[id] = struct{}{}
		}
	}
	if len(overloaded) == 0 {
		return
	}

	log.Printf("applying interference to %d overloaded concepts", len(overloaded))

	g.shortTermEdges.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
		_, fromOverloaded := overloaded[key.From]
		_, toOverloaded := overloaded[key.To]
		if fromOverloaded || toOverloaded {
			g.shortTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
				e.Decay(g.config.DecayRate * 2.0)
				return e
			})
		}
		return true
	})
}

// Reconsolidate moves every long-term edge incident to the given concepts
// back to short-term, scaled down by 10% and freshly accessed. Recalled
// memories become labile again.
func (g *MemoryGraph) Reconsolidate(conceptIDs []core.ConceptID) {
	set := make(map[core.ConceptID]struct{}, len(conceptIDs))
	for _, id := range conceptIDs {
		set[id] = struct{}{}
	}

	var toMove []core.EdgeKey
	g.longTermEdges.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
		_, fromHit := set[key.From]
		_, toHit := set[key.To]
		if fromHit || toHit {
			toMove = append(toMove, key)
		}
		return true
	})

	moved := 0
	for _, key := range toMove {
		edge, ok := g.longTermEdges.Get(key)
		if !ok {
			continue
		}
		g.longTermEdges.Delete(key)

		edge.Weight = core.NewWeight(edge.Weight.Value * 0.9)
		edge.LastAccessed = time.Now()
		g.shortTermEdges.Set(key, edge)
		moved++
	}

	if moved > 0 {
		log.Printf("reconsolidated %d connections", moved)
	}
}

// SchemaConsolidation strengthens long-term edges that follow frequent
// content patterns, modelling how abstract knowledge becomes independent of
// specific episodes.
func (g *MemoryGraph) SchemaConsolidation() {
	const strongPatternThreshold = 5.0

	patternStrength := make(map[string]float64)

	g.longTermEdges.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
		if pattern := g.edgePattern(key); pattern != "" {
			patternStrength[pattern] += edge.Weight.Value
		}
		return true
	})

	g.longTermEdges.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
		pattern := g.edgePattern(key)
		if pattern == "" {
			return true
		}
		if patternStrength[pattern] > strongPatternThreshold {
			g.longTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
				e.Weight.Strengthen(g.config.LearningRate * 0.5)
				return e
			})
		}
		return true
	})

	log.Printf("schema consolidation completed for %d patterns", len(patternStrength))
}

// edgePattern derives the canonical shared-word pattern of an edge: the
// intersection of both endpoints' lower-cased whitespace tokens, kept only
// when it has 2+ words, sorted and underscore-joined.
func (g *MemoryGraph) edgePattern(key core.EdgeKey) string {
	from, ok := g.concepts.Get(key.From)
	if !ok {
		return ""
	}
	to, ok := g.concepts.Get(key.To)
	if !ok {
		return ""
	}

	wordsFrom := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(from.Content)) {
		wordsFrom[w] = struct{}{}
	}

	var common []string
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(to.Content)) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := wordsFrom[w]; ok {
			common = append(common, w)
		}
	}

	if len(common) < 2 {
		return ""
	}
	sort.Strings(common)
	return strings.Join(common, "_")
}
