package graph

import (
	"log"
	"math"
	"strings"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

// ForgettingConfig controls the forgetting cycle.
type ForgettingConfig struct {
	// ConceptIsolationThreshold is the minimum total incidence (both
	// zones) a concept needs to survive the isolation phase.
	ConceptIsolationThreshold int

	// UnusedConceptDays is the disuse age before rarely-accessed concepts
	// are forgotten.
	UnusedConceptDays int

	// WeakConnectionThreshold is the short-term pruning weight cutoff.
	// Long-term uses half of it.
	WeakConnectionThreshold float64

	// AggressiveForgetting enables the extra pruning phase.
	AggressiveForgetting bool
}

// DefaultForgettingConfig returns the standard forgetting profile.
func DefaultForgettingConfig() ForgettingConfig {
	return ForgettingConfig{
		ConceptIsolationThreshold: 1,
		UnusedConceptDays:         30,
		WeakConnectionThreshold:   0.05,
		AggressiveForgetting:      false,
	}
}

// ForgettingStats reports the outcome of a forgetting cycle.
type ForgettingStats struct {
	ConceptsForgotten       int
	ConnectionsPruned       int
	WeakConnectionsDecayed  int
	IsolatedConceptsRemoved int
}

// Forget runs the full forgetting cycle: threshold pruning, Ebbinghaus
// decay, isolation removal, disuse removal, and optionally the aggressive
// phase.
func (g *MemoryGraph) Forget(config ForgettingConfig) ForgettingStats {
	log.Println("starting forgetting cycle")

	var stats ForgettingStats

	stats.ConnectionsPruned += g.pruneWeakConnections(config.WeakConnectionThreshold)
	stats.WeakConnectionsDecayed += g.applyForgettingCurves()
	stats.IsolatedConceptsRemoved += g.removeIsolatedConcepts(config.ConceptIsolationThreshold)
	stats.ConceptsForgotten += g.removeUnusedConcepts(config.UnusedConceptDays)

	if config.AggressiveForgetting {
		stats.ConnectionsPruned += g.aggressiveConnectionPruning()
		stats.ConceptsForgotten += g.aggressiveConceptRemoval()
	}

	log.Printf("forgetting cycle completed: %d concepts forgotten, %d connections pruned",
		stats.ConceptsForgotten, stats.ConnectionsPruned)

	return stats
}

// pruneWeakConnections removes short-term edges below the threshold and
// long-term edges below half of it.
func (g *MemoryGraph) pruneWeakConnections(threshold float64) int {
	pruned := 0
	pruned += g.pruneZoneBelow(g.shortTermEdges, threshold)
	pruned += g.pruneZoneBelow(g.longTermEdges, threshold*0.5) // long-term is more conservative
	return pruned
}

func (g *MemoryGraph) pruneZoneBelow(zone *shardedMap[core.EdgeKey, core.SynapticEdge], threshold float64) int {
	var toRemove []core.EdgeKey
	zone.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
		if edge.Weight.Value < threshold {
			toRemove = append(toRemove, key)
		}
		return true
	})
	for _, key := range toRemove {
		zone.Delete(key)
	}
	return len(toRemove)
}

// applyForgettingCurves applies Ebbinghaus-style exponential decay based on
// time since last access. Short-term retention uses R = e^(-d/(30w));
// long-term uses R = e^(-d/(180w)) at a tenth of the strength.
func (g *MemoryGraph) applyForgettingCurves() int {
	decayed := 0
	now := time.Now()

	g.shortTermEdges.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
		days := now.Sub(edge.LastAccessed).Seconds() / 86400.0
		retention := math.Exp(-days / (edge.Weight.Value * 30.0))
		if amount := 1.0 - retention; amount > 0 {
			g.shortTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
				e.Decay(amount)
				return e
			})
			decayed++
		}
		return true
	})

	g.longTermEdges.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
		days := now.Sub(edge.LastAccessed).Seconds() / 86400.0
		retention := math.Exp(-days / (edge.Weight.Value * 180.0))
		if amount := (1.0 - retention) * 0.1; amount > 0 {
			g.longTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
				e.Decay(amount)
				return e
			})
			decayed++
		}
		return true
	})

	return decayed
}

// removeIsolatedConcepts drops concepts whose total incidence across both
// zones is below the threshold, along with their working-memory entries.
func (g *MemoryGraph) removeIsolatedConcepts(minConnections int) int {
	counts := make(map[core.ConceptID]int)
	countZone := func(zone *shardedMap[core.EdgeKey, core.SynapticEdge]) {
		zone.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
			counts[key.From]++
			counts[key.To]++
			return true
		})
	}
	countZone(g.shortTermEdges)
	countZone(g.longTermEdges)

	var isolated []core.ConceptID
	g.concepts.Range(func(id core.ConceptID, _ core.Concept) bool {
		if counts[id] < minConnections {
			isolated = append(isolated, id)
		}
		return true
	})

	for _, id := range isolated {
		g.concepts.Delete(id)
		g.workingMemory.Delete(id)
	}

	return len(isolated)
}

// removeUnusedConcepts cascade-removes concepts unaccessed for the given
// number of days with fewer than 3 accesses.
func (g *MemoryGraph) removeUnusedConcepts(daysThreshold int) int {
	cutoff := time.Now().Add(-time.Duration(daysThreshold) * 24 * time.Hour)

	var toRemove []core.ConceptID
	g.concepts.Range(func(id core.ConceptID, c core.Concept) bool {
		if c.LastAccessed.Before(cutoff) && c.AccessCount < 3 {
			toRemove = append(toRemove, id)
		}
		return true
	})

	for _, id := range toRemove {
		g.concepts.Delete(id)
		g.workingMemory.Delete(id)
		g.removeIncidentEdges(id)
	}

	return len(toRemove)
}

// aggressiveConnectionPruning removes short-term edges untouched for a week
// with weight under 0.3.
func (g *MemoryGraph) aggressiveConnectionPruning() int {
	weekAgo := time.Now().Add(-7 * 24 * time.Hour)

	var toRemove []core.EdgeKey
	g.shortTermEdges.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
		if edge.LastAccessed.Before(weekAgo) && edge.Weight.Value < 0.3 {
			toRemove = append(toRemove, key)
		}
		return true
	})
	for _, key := range toRemove {
		g.shortTermEdges.Delete(key)
	}

	return len(toRemove)
}

// aggressiveConceptRemoval cascade-removes concepts older than two weeks
// with few accesses and short content.
func (g *MemoryGraph) aggressiveConceptRemoval() int {
	twoWeeksAgo := time.Now().Add(-14 * 24 * time.Hour)

	var toRemove []core.ConceptID
	g.concepts.Range(func(id core.ConceptID, c core.Concept) bool {
		if c.LastAccessed.Before(twoWeeksAgo) && c.AccessCount < 5 && len(c.Content) < 50 {
			toRemove = append(toRemove, id)
		}
		return true
	})

	for _, id := range toRemove {
		g.concepts.Delete(id)
		g.workingMemory.Delete(id)
		g.removeIncidentEdges(id)
	}

	return len(toRemove)
}

// ForgetConcepts removes the given concepts, their working-memory entries,
// and all incident edges. Returns the number of concepts actually removed.
func (g *MemoryGraph) ForgetConcepts(conceptIDs []core.ConceptID) int {
	forgotten := 0
	for _, id := range conceptIDs {
		if g.RemoveConcept(id) {
			forgotten++
		}
	}

	log.Printf("targeted forgetting: %d concepts removed", forgotten)
	return forgotten
}

// InterferenceForgetting weakens memories similar to a newly learned
// concept (proactive interference): every concept whose content similarity
// exceeds the threshold has its short-term edges decayed by 0.2 and its
// access count decremented, saturating at zero.
func (g *MemoryGraph) InterferenceForgetting(newConceptID core.ConceptID, similarityThreshold float64) int {
	newConcept, ok := g.concepts.Get(newConceptID)
	if !ok {
		return 0
	}

	newWords := contentWordSet(newConcept.Content)

	var similar []core.ConceptID
	g.concepts.Range(func(id core.ConceptID, c core.Concept) bool {
		if id == newConceptID {
			return true
		}
		if jaccard(newWords, contentWordSet(c.Content)) > similarityThreshold {
			similar = append(similar, id)
		}
		return true
	})

	for _, id := range similar {
		g.forEachIncidentShortTerm(id, func(e core.SynapticEdge) core.SynapticEdge {
			e.Decay(0.2)
			return e
		})
		g.concepts.Update(id, func(c core.Concept) core.Concept {
			if c.AccessCount > 0 {
				c.AccessCount--
			}
			return c
		})
	}

	log.Printf("interference forgetting affected %d similar concepts", len(similar))
	return len(similar)
}

// ForgettingCandidates returns the concept ids the disuse rule would
// remove, without removing them.
func (g *MemoryGraph) ForgettingCandidates(config ForgettingConfig) []core.ConceptID {
	cutoff := time.Now().Add(-time.Duration(config.UnusedConceptDays) * 24 * time.Hour)

	var candidates []core.ConceptID
	g.concepts.Range(func(id core.ConceptID, c core.Concept) bool {
		if c.LastAccessed.Before(cutoff) && c.AccessCount < 3 {
			candidates = append(candidates, id)
		}
		return true
	})

	return candidates
}

// contentWordSet returns the set of lower-cased whitespace tokens.
func contentWordSet(content string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(content)) {
		words[w] = struct{}{}
	}
	return words
}

// jaccard computes set-overlap similarity of two word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
