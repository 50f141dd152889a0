package graph

import (
	"fmt"
	"testing"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

func TestConsolidationPromotesMatureEdge(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")

	for i := 0; i < 3; i++ {
		if err := g.Associate(a, b); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := g.AccessConcept(a); err != nil {
			t.Fatal(err)
		}
		if err := g.AccessConcept(b); err != nil {
			t.Fatal(err)
		}
	}

	key := core.EdgeKey{From: a, To: b}
	g.shortTermEdges.Update(key, func(e core.SynapticEdge) core.SynapticEdge {
		e.CreatedAt = time.Now().Add(-2 * time.Hour)
		return e
	})

	stats := g.Consolidate()

	if g.shortTermEdges.Contains(key) {
		t.Error("Promoted edge should be absent from short-term")
	}
	if !g.longTermEdges.Contains(key) {
		t.Error("Promoted edge should be present in long-term")
	}
	if stats.PromotedToLongTerm != 1 {
		t.Errorf("Expected 1 promotion, got %d", stats.PromotedToLongTerm)
	}
	if stats.TotalShortTermBefore != 1 {
		t.Errorf("Expected short-term size before of 1, got %d", stats.TotalShortTermBefore)
	}
	if stats.TotalLongTermAfter != 1 {
		t.Errorf("Expected long-term size after of 1, got %d", stats.TotalLongTermAfter)
	}
}

func TestConsolidationMergesIntoExistingLongTerm(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	key := core.EdgeKey{From: a, To: b}

	st := *core.NewEdge(a, b)
	st.Weight = core.NewWeight(0.8)
	st.ActivationCount = 5
	st.CreatedAt = time.Now().Add(-2 * time.Hour)
	g.shortTermEdges.Set(key, st)

	lt := *core.NewEdge(a, b)
	lt.Weight = core.NewWeight(0.4)
	lt.ActivationCount = 7
	g.longTermEdges.Set(key, lt)

	stats := g.Consolidate()

	if stats.Reactivated != 1 {
		t.Errorf("Expected 1 reactivation, got %d", stats.Reactivated)
	}
	if stats.PromotedToLongTerm != 0 {
		t.Errorf("Expected 0 promotions, got %d", stats.PromotedToLongTerm)
	}

	merged, ok := g.longTermEdges.Get(key)
	if !ok {
		t.Fatal("Merged edge missing from long-term")
	}
	if diff := merged.Weight.Value - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Merged weight should average to 0.6, got %f", merged.Weight.Value)
	}
	if merged.ActivationCount != 12 {
		t.Errorf("Merged activation count should sum to 12, got %d", merged.ActivationCount)
	}
	if g.shortTermEdges.Contains(key) {
		t.Error("Promoted key must leave short-term")
	}
}

func TestConsolidationPrunesInactiveEdges(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	key := core.EdgeKey{From: a, To: b}

	dead := *core.NewEdge(a, b)
	dead.Weight = core.NewWeight(0.0)
	g.shortTermEdges.Set(key, dead)

	stats := g.Consolidate()

	if stats.PrunedWeak != 1 {
		t.Errorf("Expected 1 pruned edge, got %d", stats.PrunedWeak)
	}
	if g.shortTermEdges.Contains(key) {
		t.Error("Inactive edge should be pruned from short-term")
	}
}

func TestConsolidationLeavesActiveUnpromotedEdges(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	if err := g.Associate(a, b); err != nil {
		t.Fatal(err)
	}
	key := core.EdgeKey{From: a, To: b}

	g.Consolidate()

	// A fresh edge (active, but immature and weak) stays short-term.
	if !g.shortTermEdges.Contains(key) {
		t.Error("Active unpromoted edge should remain in short-term")
	}
}

func TestConsolidationUpdatesTimestamp(t *testing.T) {
	g := NewWithDefaults()

	g.consolidationMu.Lock()
	g.lastConsolidation = time.Now().Add(-48 * time.Hour)
	g.consolidationMu.Unlock()

	g.Consolidate()

	if g.ShouldConsolidate() {
		t.Error("Consolidation should refresh the last-consolidation timestamp")
	}
}

func TestConsolidationInterference(t *testing.T) {
	g := NewWithDefaults()

	hub := g.Learn("hub")
	key0 := core.EdgeKey{}
	var firstWeight float64

	// 51 short-term incidences puts the hub over the interference limit.
	for i := 0; i < 51; i++ {
		other := g.Learn(fmt.Sprintf("spoke %d", i))
		edge := *core.NewEdge(hub, other)
		edge.Weight = core.NewWeight(0.9)
		g.shortTermEdges.Set(edge.Key(), edge)
		if i == 0 {
			key0 = edge.Key()
			firstWeight = edge.Weight.Value
		}
	}

	g.Consolidate()

	after, ok := g.shortTermEdges.Get(key0)
	if !ok {
		t.Fatal("Spoke edge should still exist")
	}
	if after.Weight.Value >= firstWeight {
		t.Error("Interference should have weakened the hub's edges")
	}
}

func TestReconsolidation(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	c := g.Learn("third")

	recalled := *core.NewEdge(a, b)
	recalled.Weight = core.NewWeight(0.8)
	g.longTermEdges.Set(recalled.Key(), recalled)

	untouched := *core.NewEdge(b, c)
	g.longTermEdges.Set(untouched.Key(), untouched)

	g.Reconsolidate([]core.ConceptID{a})

	moved, ok := g.shortTermEdges.Get(recalled.Key())
	if !ok {
		t.Fatal("Recalled edge should move back to short-term")
	}
	if g.longTermEdges.Contains(recalled.Key()) {
		t.Error("Recalled edge must leave long-term")
	}
	if diff := moved.Weight.Value - 0.72; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Reconsolidated weight should scale by 0.9 to 0.72, got %f", moved.Weight.Value)
	}

	if !g.longTermEdges.Contains(untouched.Key()) {
		t.Error("Edges not incident to recalled concepts must stay long-term")
	}
}

func TestSchemaConsolidation(t *testing.T) {
	g := NewWithDefaults()

	// Six edges over concept pairs sharing "neural network"; each at 0.9
	// pushes the pattern sum over the 5.0 threshold.
	var keys []core.EdgeKey
	for i := 0; i < 6; i++ {
		from := g.Learn(fmt.Sprintf("neural network layer %d", i))
		to := g.Learn(fmt.Sprintf("neural network weight %d", i+100))
		edge := *core.NewEdge(from, to)
		edge.Weight = core.NewWeight(0.9)
		g.longTermEdges.Set(edge.Key(), edge)
		keys = append(keys, edge.Key())
	}

	// An unrelated edge with no shared words stays untouched.
	lonelyFrom := g.Learn("completely different topic")
	lonelyTo := g.Learn("another unrelated subject")
	lonely := *core.NewEdge(lonelyFrom, lonelyTo)
	lonely.Weight = core.NewWeight(0.9)
	g.longTermEdges.Set(lonely.Key(), lonely)

	g.SchemaConsolidation()

	for _, key := range keys {
		after, _ := g.longTermEdges.Get(key)
		if after.Weight.Value <= 0.9 {
			t.Errorf("Pattern edge %v should be strengthened, got %f", key, after.Weight.Value)
		}
	}

	lonelyAfter, _ := g.longTermEdges.Get(lonely.Key())
	if lonelyAfter.Weight.Value != 0.9 {
		t.Errorf("Patternless edge should be unchanged, got %f", lonelyAfter.Weight.Value)
	}
}
