package graph

import (
	"log"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

// ApplyLTDDecay applies long-term depression across both zones: every
// short-term edge decays at the configured rate, every long-term edge at a
// tenth of it. Edges that fall inactive are removed after the pass.
func (g *MemoryGraph) ApplyLTDDecay() {
	pruned := 0

	pruned += g.decayZone(g.shortTermEdges, g.config.DecayRate)
	pruned += g.decayZone(g.longTermEdges, g.config.DecayRate*0.1) // 10x slower decay

	if pruned > 0 {
		log.Printf("LTD decay pruned %d connections", pruned)
	}
}

// decayZone decays every edge in a table and removes the ones that end up
// inactive. Two-phase: keys are collected during the pass, removed after.
func (g *MemoryGraph) decayZone(zone *shardedMap[core.EdgeKey, core.SynapticEdge], rate float64) int {
	var toRemove []core.EdgeKey

	zone.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
		active := false
		zone.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
			e.Decay(rate)
			active = e.IsActive()
			return e
		})
		if !active {
			toRemove = append(toRemove, key)
		}
		return true
	})

	for _, key := range toRemove {
		zone.Delete(key)
	}
	return len(toRemove)
}

// ApplyLTPStrengthening strengthens connections between concepts currently
// in working memory: short-term edges at double the learning rate,
// long-term edges at the base rate.
func (g *MemoryGraph) ApplyLTPStrengthening() {
	working := make(map[core.ConceptID]struct{}, g.workingMemory.Len())
	g.workingMemory.Range(func(id core.ConceptID, _ time.Time) bool {
		working[id] = struct{}{}
		return true
	})

	strengthen := func(zone *shardedMap[core.EdgeKey, core.SynapticEdge], rate float64) {
		zone.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
			if _, ok := working[key.From]; !ok {
				return true
			}
			if _, ok := working[key.To]; !ok {
				return true
			}
			zone.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
				e.Activate(rate)
				return e
			})
			return true
		})
	}

	strengthen(g.shortTermEdges, g.config.LearningRate*2.0)
	strengthen(g.longTermEdges, g.config.LearningRate)
}

// SleepCycle runs decay, strengthening, and working-memory cleanup in one
// pass, mimicking sleep-time memory processing.
func (g *MemoryGraph) SleepCycle() {
	log.Println("starting sleep cycle")

	g.ApplyLTDDecay()
	g.ApplyLTPStrengthening()

	// Drop working-memory entries older than one hour.
	cutoff := time.Now().Add(-time.Hour)
	var stale []core.ConceptID
	g.workingMemory.Range(func(id core.ConceptID, ts time.Time) bool {
		if ts.Before(cutoff) {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		g.workingMemory.Delete(id)
	}

	if len(stale) > 0 {
		log.Printf("sleep cycle cleared %d working memory entries", len(stale))
	}
}

// AdaptiveLearningRate scales the base rate by connection strength: weaker
// connections learn faster (more plasticity), stronger ones slower (more
// stability).
func (g *MemoryGraph) AdaptiveLearningRate(weight core.SynapticWeight) float64 {
	return g.config.LearningRate * (0.5 + (1.0 - weight.Value))
}

// HebbianStrengthening strengthens connections between co-activated
// concepts: for every unordered pair, both directions are strengthened in
// whichever zone holds them, short-term checked first, at the adaptive rate.
func (g *MemoryGraph) HebbianStrengthening(conceptIDs []core.ConceptID) {
	if len(conceptIDs) < 2 {
		return
	}

	for i := 0; i < len(conceptIDs); i++ {
		for j := i + 1; j < len(conceptIDs); j++ {
			g.hebbianActivate(core.EdgeKey{From: conceptIDs[i], To: conceptIDs[j]})
			g.hebbianActivate(core.EdgeKey{From: conceptIDs[j], To: conceptIDs[i]})
		}
	}
}

// hebbianActivate strengthens the edge under key in short-term, falling
// back to long-term. Missing edges are left alone.
func (g *MemoryGraph) hebbianActivate(key core.EdgeKey) {
	activate := func(e core.SynapticEdge) core.SynapticEdge {
		e.Activate(g.AdaptiveLearningRate(e.Weight))
		return e
	}
	if !g.shortTermEdges.Update(key, activate) {
		g.longTermEdges.Update(key, activate)
	}
}

// CompetitiveLearning boosts short-term edges incident to winner concepts
// by 1.5x the learning rate and doubles the decay on short-term edges
// incident to loser concepts.
func (g *MemoryGraph) CompetitiveLearning(winners, losers []core.ConceptID) {
	for _, id := range winners {
		g.forEachIncidentShortTerm(id, func(e core.SynapticEdge) core.SynapticEdge {
			e.Activate(g.config.LearningRate * 1.5)
			return e
		})
	}

	for _, id := range losers {
		g.forEachIncidentShortTerm(id, func(e core.SynapticEdge) core.SynapticEdge {
			e.Decay(g.config.DecayRate * 2.0)
			return e
		})
	}

	log.Printf("competitive learning: %d winners boosted, %d losers weakened", len(winners), len(losers))
}

func (g *MemoryGraph) forEachIncidentShortTerm(id core.ConceptID, fn func(core.SynapticEdge) core.SynapticEdge) {
	var incident []core.EdgeKey
	g.shortTermEdges.Range(func(key core.EdgeKey, _ core.SynapticEdge) bool {
		if key.From == id || key.To == id {
			incident = append(incident, key)
		}
		return true
	})
	for _, key := range incident {
		g.shortTermEdges.Update(key, fn)
	}
}
