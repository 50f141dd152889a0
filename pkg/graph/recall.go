package graph

import (
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

// RecallResult is one ranked hit from a recall query.
type RecallResult struct {
	Concept            core.Concept
	RelevanceScore     float64
	AssociationPath    []core.ConceptID
	ConnectionStrength float64
}

// RecallQuery configures an associative or content recall.
type RecallQuery struct {
	// MaxResults truncates the ranked result list. 0 means unlimited.
	MaxResults int

	// MinRelevance filters hits and bounds BFS expansion.
	MinRelevance float64

	// MaxPathLength is the BFS depth limit.
	MaxPathLength int

	// BoostRecentMemories scales relevance by access recency.
	BoostRecentMemories bool
}

// DefaultRecallQuery returns the standard recall profile.
func DefaultRecallQuery() RecallQuery {
	return RecallQuery{
		MaxResults:          10,
		MinRelevance:        0.1,
		MaxPathLength:       3,
		BoostRecentMemories: true,
	}
}

// bfsNode is one queue entry during associative recall.
type bfsNode struct {
	id        core.ConceptID
	relevance float64
	path      []core.ConceptID
	depth     int
}

// scoreEntry tracks the best relevance seen for a visited concept.
type scoreEntry struct {
	score    float64
	path     []core.ConceptID
	strength float64
}

// Recall retrieves concepts associated with the source by breadth-first
// weighted traversal across both zones. The source is marked accessed
// (with its usual side effects) and excluded from the results.
func (g *MemoryGraph) Recall(sourceID core.ConceptID, query RecallQuery) []RecallResult {
	log.Printf("starting recall for concept %s", sourceID)

	_ = g.AccessConcept(sourceID)

	visited := map[core.ConceptID]struct{}{sourceID: {}}
	scores := make(map[core.ConceptID]*scoreEntry)

	queue := []bfsNode{{
		id:        sourceID,
		relevance: 1.0,
		path:      []core.ConceptID{sourceID},
		depth:     0,
	}}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if node.depth >= query.MaxPathLength {
			continue
		}

		g.exploreConnections(node, &queue, visited, scores, query)
	}

	results := make([]RecallResult, 0, len(scores))
	for id, entry := range scores {
		if entry.score < query.MinRelevance || id == sourceID {
			continue
		}
		concept, ok := g.concepts.Get(id)
		if !ok {
			continue
		}

		score := entry.score
		if query.BoostRecentMemories {
			score *= recencyBoost(concept.LastAccessed)
		}

		results = append(results, RecallResult{
			Concept:            concept,
			RelevanceScore:     score,
			AssociationPath:    entry.path,
			ConnectionStrength: entry.strength,
		})
	}

	sortAndTruncate(&results, query.MaxResults)

	log.Printf("recall completed with %d results", len(results))
	return results
}

// exploreConnections expands one BFS node over every incident edge in
// either zone.
func (g *MemoryGraph) exploreConnections(
	node bfsNode,
	queue *[]bfsNode,
	visited map[core.ConceptID]struct{},
	scores map[core.ConceptID]*scoreEntry,
	query RecallQuery,
) {
	process := func(zone *shardedMap[core.EdgeKey, core.SynapticEdge]) {
		zone.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
			var target core.ConceptID
			switch node.id {
			case key.From:
				target = key.To
			case key.To:
				target = key.From
			default:
				return true
			}
			g.processConnection(target, edge.Weight, node, queue, visited, scores, query)
			return true
		})
	}

	process(g.shortTermEdges)
	process(g.longTermEdges)
}

// processConnection scores a single step across an edge and enqueues the
// target on first sight when the relevance clears the floor.
func (g *MemoryGraph) processConnection(
	targetID core.ConceptID,
	weight core.SynapticWeight,
	node bfsNode,
	queue *[]bfsNode,
	visited map[core.ConceptID]struct{},
	scores map[core.ConceptID]*scoreEntry,
	query RecallQuery,
) {
	if !weight.IsActive() {
		return
	}

	// Relevance degrades multiplicatively along the path.
	pathDegradation := math.Pow(0.8, float64(node.depth))
	newRelevance := node.relevance * weight.Value * pathDegradation

	entry, seen := scores[targetID]
	if !seen {
		entry = &scoreEntry{}
		scores[targetID] = entry
	}
	if newRelevance > entry.score {
		newPath := append(append([]core.ConceptID(nil), node.path...), targetID)
		entry.score = newRelevance
		entry.path = newPath
		entry.strength = weight.Value
	}

	if _, ok := visited[targetID]; !ok && newRelevance >= query.MinRelevance {
		visited[targetID] = struct{}{}
		newPath := append(append([]core.ConceptID(nil), node.path...), targetID)
		*queue = append(*queue, bfsNode{
			id:        targetID,
			relevance: newRelevance,
			path:      newPath,
			depth:     node.depth + 1,
		})
	}
}

// recencyBoost scales relevance by how recently a concept was accessed.
func recencyBoost(lastAccessed time.Time) float64 {
	since := time.Since(lastAccessed)
	switch {
	case since < time.Hour:
		return 1.5
	case since < 24*time.Hour:
		return 1.2
	case since < 7*24*time.Hour:
		return 1.0
	default:
		return 0.8
	}
}

// RecallByContent ranks concepts by Jaccard similarity between the query's
// words and each concept's content words (tokens longer than two
// characters only).
func (g *MemoryGraph) RecallByContent(queryContent string, query RecallQuery) []RecallResult {
	log.Printf("starting content-based recall for %q", queryContent)

	queryWords := significantWordSet(queryContent)

	var results []RecallResult
	g.concepts.Range(func(_ core.ConceptID, concept core.Concept) bool {
		similarity := jaccard(queryWords, significantWordSet(concept.Content))
		if similarity < query.MinRelevance {
			return true
		}

		score := similarity
		if query.BoostRecentMemories {
			score *= recencyBoost(concept.LastAccessed)
		}

		results = append(results, RecallResult{
			Concept:            concept,
			RelevanceScore:     score,
			AssociationPath:    []core.ConceptID{concept.ID},
			ConnectionStrength: similarity,
		})
		return true
	})

	sortAndTruncate(&results, query.MaxResults)

	log.Printf("content-based recall completed with %d results", len(results))
	return results
}

// SpreadingActivationRecall initialises the seeds at activation 1.0 and
// iteratively pushes activation across edges (scaled by weight and a 0.7
// spread decay) until no level rises or the iteration cap is reached.
// Non-seed concepts at or above the threshold are returned ranked.
func (g *MemoryGraph) SpreadingActivationRecall(
	seeds []core.ConceptID,
	activationThreshold float64,
	maxIterations int,
) []RecallResult {
	log.Printf("starting spreading activation recall with %d seeds", len(seeds))

	levels := make(map[core.ConceptID]float64, len(seeds))
	for _, id := range seeds {
		levels[id] = 1.0
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		next := make(map[core.ConceptID]float64, len(levels))
		for id, a := range levels {
			next[id] = a
		}

		changed := false
		for id, activation := range levels {
			if activation < activationThreshold {
				continue
			}
			g.spreadToNeighbors(id, activation, next, &changed)
		}

		levels = next
		if !changed {
			log.Printf("spreading activation converged at iteration %d", iteration)
			break
		}
	}

	seedSet := make(map[core.ConceptID]struct{}, len(seeds))
	for _, id := range seeds {
		seedSet[id] = struct{}{}
	}

	var results []RecallResult
	for id, activation := range levels {
		if activation < activationThreshold {
			continue
		}
		if _, isSeed := seedSet[id]; isSeed {
			continue
		}
		concept, ok := g.concepts.Get(id)
		if !ok {
			continue
		}
		results = append(results, RecallResult{
			Concept:            concept,
			RelevanceScore:     activation,
			AssociationPath:    []core.ConceptID{id},
			ConnectionStrength: activation,
		})
	}

	sortAndTruncate(&results, 0)

	log.Printf("spreading activation recall completed with %d results", len(results))
	return results
}

// spreadToNeighbors proposes activation to every neighbour in either zone;
// a target keeps the max of its current level and the proposal.
func (g *MemoryGraph) spreadToNeighbors(
	id core.ConceptID,
	activation float64,
	levels map[core.ConceptID]float64,
	changed *bool,
) {
	const spreadDecay = 0.7

	spread := func(zone *shardedMap[core.EdgeKey, core.SynapticEdge]) {
		zone.Range(func(key core.EdgeKey, edge core.SynapticEdge) bool {
			var target core.ConceptID
			switch id {
			case key.From:
				target = key.To
			case key.To:
				target = key.From
			default:
				return true
			}

			proposed := activation * edge.Weight.Value * spreadDecay
			if proposed > levels[target] {
				levels[target] = proposed
				*changed = true
			}
			return true
		})
	}

	spread(g.shortTermEdges)
	spread(g.longTermEdges)
}

// significantWordSet tokenises on whitespace, lower-cases, and drops
// tokens of length <= 2.
func significantWordSet(content string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(content)) {
		if len(w) > 2 {
			words[w] = struct{}{}
		}
	}
	return words
}

// sortAndTruncate orders results by relevance descending and applies the
// result cap when positive.
func sortAndTruncate(results *[]RecallResult, maxResults int) {
	sort.SliceStable(*results, func(i, j int) bool {
		return (*results)[i].RelevanceScore > (*results)[j].RelevanceScore
	})
	if maxResults > 0 && len(*results) > maxResults {
		*results = (*results)[:maxResults]
	}
}
