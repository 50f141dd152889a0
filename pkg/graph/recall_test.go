package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

func TestRecallFindsDirectNeighbors(t *testing.T) {
	g := NewWithDefaults()

	cat := g.Learn("A small furry animal that meows")
	dog := g.Learn("A loyal furry animal that barks")
	pet := g.Learn("A domesticated animal companion")

	if err := g.Associate(cat, pet); err != nil {
		t.Fatal(err)
	}
	if err := g.Associate(dog, pet); err != nil {
		t.Fatal(err)
	}

	results := g.Recall(pet, RecallQuery{
		MaxResults:    10,
		MinRelevance:  0.0,
		MaxPathLength: 2,
	})

	if len(results) != 2 {
		t.Fatalf("Expected exactly cat and dog, got %d results", len(results))
	}

	found := make(map[core.ConceptID]RecallResult)
	for _, r := range results {
		found[r.Concept.ID] = r
	}
	if _, ok := found[cat]; !ok {
		t.Error("Expected cat in results")
	}
	if _, ok := found[dog]; !ok {
		t.Error("Expected dog in results")
	}

	// Recall marks the source accessed, which strengthens both incident
	// edges once before traversal: 0.1 + 0.1*(1-0.1) = 0.19. Relevance
	// at depth 0 is 1.0 * w * 0.8^0.
	expected := 0.19
	for id, r := range found {
		if diff := r.RelevanceScore - expected; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Concept %v: expected relevance %f, got %f", id, expected, r.RelevanceScore)
		}
		if len(r.AssociationPath) != 2 {
			t.Errorf("Concept %v: expected path length 2, got %d", id, len(r.AssociationPath))
		}
		if r.AssociationPath[0] != pet {
			t.Error("Path should start at the source")
		}
	}
}

func TestRecallExcludesSource(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	if err := g.AssociateBidirectional(a, b); err != nil {
		t.Fatal(err)
	}

	results := g.Recall(a, RecallQuery{MaxResults: 10, MinRelevance: 0, MaxPathLength: 3})

	for _, r := range results {
		if r.Concept.ID == a {
			t.Error("Recall must never return the source concept")
		}
	}
}

func TestRecallHonorsMaxPathLength(t *testing.T) {
	g := NewWithDefaults()

	// Chain a - b - c - d; recall from a with path limit 1 sees only b.
	a := g.Learn("node a")
	b := g.Learn("node b")
	c := g.Learn("node c")
	d := g.Learn("node d")
	for _, pair := range [][2]core.ConceptID{{a, b}, {b, c}, {c, d}} {
		edge := *core.NewEdge(pair[0], pair[1])
		edge.Weight = core.NewWeight(0.9)
		g.shortTermEdges.Set(edge.Key(), edge)
	}

	results := g.Recall(a, RecallQuery{MaxResults: 10, MinRelevance: 0, MaxPathLength: 1})

	if len(results) != 1 {
		t.Fatalf("Expected only the direct neighbor, got %d results", len(results))
	}
	if results[0].Concept.ID != b {
		t.Error("Expected the direct neighbor b")
	}
}

func TestRecallIgnoresInactiveEdges(t *testing.T) {
	// Recall marks the source accessed, which strengthens incident edges
	// first; a near-zero learning rate keeps the dead edge below the
	// activity threshold during traversal.
	config := core.DefaultMemoryConfig()
	config.LearningRate = 0.0000001
	g2 := New(config)
	a2 := g2.Learn("first")
	b2 := g2.Learn("second")
	dead2 := *core.NewEdge(a2, b2)
	dead2.Weight = core.NewWeight(0.0)
	g2.shortTermEdges.Set(dead2.Key(), dead2)

	results := g2.Recall(a2, RecallQuery{MaxResults: 10, MinRelevance: 0, MaxPathLength: 2})
	if len(results) != 0 {
		t.Errorf("Inactive edges should not be traversed, got %d results", len(results))
	}
}

func TestRecallRanksByRelevance(t *testing.T) {
	g := NewWithDefaults()

	hub := g.Learn("hub")
	strong := g.Learn("strong neighbor")
	weak := g.Learn("weak neighbor")

	strongEdge := *core.NewEdge(hub, strong)
	strongEdge.Weight = core.NewWeight(0.9)
	g.shortTermEdges.Set(strongEdge.Key(), strongEdge)

	weakEdge := *core.NewEdge(hub, weak)
	weakEdge.Weight = core.NewWeight(0.2)
	g.shortTermEdges.Set(weakEdge.Key(), weakEdge)

	results := g.Recall(hub, RecallQuery{MaxResults: 10, MinRelevance: 0, MaxPathLength: 2})

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Concept.ID != strong {
		t.Error("Results should be sorted by relevance descending")
	}
}

func TestRecallTruncatesToMaxResults(t *testing.T) {
	g := NewWithDefaults()

	hub := g.Learn("hub")
	for i := 0; i < 10; i++ {
		other := g.Learn(fmt.Sprintf("neighbor %d", i))
		edge := *core.NewEdge(hub, other)
		edge.Weight = core.NewWeight(0.8)
		g.shortTermEdges.Set(edge.Key(), edge)
	}

	results := g.Recall(hub, RecallQuery{MaxResults: 3, MinRelevance: 0, MaxPathLength: 2})

	if len(results) != 3 {
		t.Errorf("Expected results truncated to 3, got %d", len(results))
	}
}

func TestRecencyBoost(t *testing.T) {
	cases := []struct {
		age      time.Duration
		expected float64
	}{
		{30 * time.Minute, 1.5},
		{5 * time.Hour, 1.2},
		{3 * 24 * time.Hour, 1.0},
		{30 * 24 * time.Hour, 0.8},
	}

	for _, tc := range cases {
		got := recencyBoost(time.Now().Add(-tc.age))
		if got != tc.expected {
			t.Errorf("Age %v: expected boost %f, got %f", tc.age, tc.expected, got)
		}
	}
}

func TestRecallByContent(t *testing.T) {
	g := NewWithDefaults()

	g.Learn("the solar system has eight planets")
	g.Learn("planets orbit the solar star")
	g.Learn("bread baking requires yeast")

	results := g.RecallByContent("solar planets", RecallQuery{
		MaxResults:   10,
		MinRelevance: 0.1,
	})

	if len(results) != 2 {
		t.Fatalf("Expected 2 matching concepts, got %d", len(results))
	}
	for _, r := range results {
		if r.Concept.Content == "bread baking requires yeast" {
			t.Error("Unrelated concept should not match")
		}
	}
}

func TestRecallByContentFiltersShortWords(t *testing.T) {
	g := NewWithDefaults()

	g.Learn("of an is to be")

	results := g.RecallByContent("of an is", RecallQuery{MaxResults: 10, MinRelevance: 0.01})
	if len(results) != 0 {
		t.Errorf("Short tokens should be filtered out entirely, got %d results", len(results))
	}
}

func TestSpreadingActivation(t *testing.T) {
	g := NewWithDefaults()

	seed := g.Learn("seed")
	near := g.Learn("near")
	far := g.Learn("far")

	e1 := *core.NewEdge(seed, near)
	e1.Weight = core.NewWeight(0.9)
	g.shortTermEdges.Set(e1.Key(), e1)

	e2 := *core.NewEdge(near, far)
	e2.Weight = core.NewWeight(0.9)
	g.longTermEdges.Set(e2.Key(), e2)

	results := g.SpreadingActivationRecall([]core.ConceptID{seed}, 0.3, 10)

	found := make(map[core.ConceptID]float64)
	for _, r := range results {
		found[r.Concept.ID] = r.RelevanceScore
		if r.Concept.ID == seed {
			t.Error("Seed concepts must not appear in results")
		}
	}

	// near: 1.0 * 0.9 * 0.7 = 0.63; far: 0.63 * 0.9 * 0.7 ≈ 0.397.
	if a, ok := found[near]; !ok || a < 0.6 {
		t.Errorf("Expected near activation ≈0.63, got %f", a)
	}
	if a, ok := found[far]; !ok || a < 0.35 {
		t.Errorf("Expected far activation ≈0.40, got %f", a)
	}
}

func TestSpreadingActivationThresholdCutsOff(t *testing.T) {
	g := NewWithDefaults()

	seed := g.Learn("seed")
	near := g.Learn("near")

	e := *core.NewEdge(seed, near)
	e.Weight = core.NewWeight(0.2)
	g.shortTermEdges.Set(e.Key(), e)

	// near would get 1.0*0.2*0.7 = 0.14, below the 0.5 threshold.
	results := g.SpreadingActivationRecall([]core.ConceptID{seed}, 0.5, 10)
	if len(results) != 0 {
		t.Errorf("Sub-threshold activations should be excluded, got %d results", len(results))
	}
}

func TestSpreadingActivationTerminates(t *testing.T) {
	g := NewWithDefaults()

	// Dense cycle: activation levels stabilise, the loop must stop.
	ids := make([]core.ConceptID, 5)
	for i := range ids {
		ids[i] = g.Learn(fmt.Sprintf("cycle node %d", i))
	}
	for i := range ids {
		edge := *core.NewEdge(ids[i], ids[(i+1)%len(ids)])
		edge.Weight = core.NewWeight(0.9)
		g.shortTermEdges.Set(edge.Key(), edge)
	}

	done := make(chan []RecallResult, 1)
	go func() {
		done <- g.SpreadingActivationRecall([]core.ConceptID{ids[0]}, 0.1, 50)
	}()

	select {
	case results := <-done:
		if len(results) == 0 {
			t.Error("Expected activated concepts in the cycle")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Spreading activation did not terminate")
	}
}
