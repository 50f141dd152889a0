package graph

import (
	"testing"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
)

func TestLTDDecayPrunesDeadEdges(t *testing.T) {
	config := core.DefaultMemoryConfig()
	config.DecayRate = 0.5
	g := New(config)

	a := g.Learn("first")
	b := g.Learn("second")
	if err := g.Associate(a, b); err != nil {
		t.Fatal(err)
	}
	key := core.EdgeKey{From: a, To: b}

	// 0.1 → 0.05 → 0.025 → 0.0125 → snap to 0 and prune.
	for i := 0; i < 10; i++ {
		g.ApplyLTDDecay()
		if !g.shortTermEdges.Contains(key) {
			return
		}
	}
	t.Error("Edge should have been pruned once weight fell below the threshold")
}

func TestLTDDecaysLongTermSlower(t *testing.T) {
	config := core.DefaultMemoryConfig()
	config.DecayRate = 0.1
	g := New(config)

	a := g.Learn("first")
	b := g.Learn("second")

	st := *core.NewEdge(a, b)
	st.Weight = core.NewWeight(0.8)
	g.shortTermEdges.Set(st.Key(), st)

	lt := *core.NewEdge(b, a)
	lt.Weight = core.NewWeight(0.8)
	g.longTermEdges.Set(lt.Key(), lt)

	g.ApplyLTDDecay()

	stAfter, _ := g.shortTermEdges.Get(st.Key())
	ltAfter, _ := g.longTermEdges.Get(lt.Key())

	if stAfter.Weight.Value >= ltAfter.Weight.Value {
		t.Errorf("Short-term should decay faster: short=%f long=%f",
			stAfter.Weight.Value, ltAfter.Weight.Value)
	}
}

func TestLTPStrengthensWorkingMemoryPairs(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	c := g.Learn("third")
	if err := g.Associate(a, b); err != nil {
		t.Fatal(err)
	}
	if err := g.Associate(a, c); err != nil {
		t.Fatal(err)
	}

	// Drop c from working memory; only a↔b qualifies.
	g.workingMemory.Delete(c)

	abBefore, _ := g.shortTermEdges.Get(core.EdgeKey{From: a, To: b})
	acBefore, _ := g.shortTermEdges.Get(core.EdgeKey{From: a, To: c})

	g.ApplyLTPStrengthening()

	abAfter, _ := g.shortTermEdges.Get(core.EdgeKey{From: a, To: b})
	acAfter, _ := g.shortTermEdges.Get(core.EdgeKey{From: a, To: c})

	if abAfter.Weight.Value <= abBefore.Weight.Value {
		t.Error("Edge with both endpoints in working memory should strengthen")
	}
	if acAfter.Weight.Value != acBefore.Weight.Value {
		t.Error("Edge with an endpoint outside working memory should not change")
	}
}

func TestSleepCycleClearsStaleWorkingMemory(t *testing.T) {
	g := NewWithDefaults()

	fresh := g.Learn("fresh")
	stale := g.Learn("stale")
	g.workingMemory.Set(stale, time.Now().Add(-2*time.Hour))

	g.SleepCycle()

	if _, ok := g.WorkingMemoryTimestamp(fresh); !ok {
		t.Error("Recent working memory entry should survive the sleep cycle")
	}
	if _, ok := g.WorkingMemoryTimestamp(stale); ok {
		t.Error("Hour-old working memory entry should be cleared")
	}
}

func TestAdaptiveLearningRate(t *testing.T) {
	g := NewWithDefaults()

	weak := g.AdaptiveLearningRate(core.NewWeight(0.1))
	strong := g.AdaptiveLearningRate(core.NewWeight(0.9))

	if weak <= strong {
		t.Errorf("Weaker connections should learn faster: weak=%f strong=%f", weak, strong)
	}

	// base * (1.5 - w)
	expected := 0.1 * (0.5 + 0.9)
	if diff := weak - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected adaptive rate %f, got %f", expected, weak)
	}
}

func TestHebbianStrengthening(t *testing.T) {
	g := NewWithDefaults()

	a := g.Learn("first")
	b := g.Learn("second")
	c := g.Learn("third")

	if err := g.Associate(a, b); err != nil {
		t.Fatal(err)
	}
	g.longTermEdges.Set(core.EdgeKey{From: b, To: c}, *core.NewEdge(b, c))

	abBefore, _ := g.shortTermEdges.Get(core.EdgeKey{From: a, To: b})
	bcBefore, _ := g.longTermEdges.Get(core.EdgeKey{From: b, To: c})

	g.HebbianStrengthening([]core.ConceptID{a, b, c})

	abAfter, _ := g.shortTermEdges.Get(core.EdgeKey{From: a, To: b})
	bcAfter, _ := g.longTermEdges.Get(core.EdgeKey{From: b, To: c})

	if abAfter.Weight.Value <= abBefore.Weight.Value {
		t.Error("Hebbian learning should strengthen the short-term pair")
	}
	if bcAfter.Weight.Value <= bcBefore.Weight.Value {
		t.Error("Hebbian learning should strengthen the long-term pair")
	}
}

func TestHebbianSingleConceptNoop(t *testing.T) {
	g := NewWithDefaults()
	a := g.Learn("alone")
	g.HebbianStrengthening([]core.ConceptID{a}) // must not panic
}

func TestCompetitiveLearning(t *testing.T) {
	g := NewWithDefaults()

	winner := g.Learn("winner")
	loser := g.Learn("loser")
	other := g.Learn("other")

	if err := g.Associate(winner, other); err != nil {
		t.Fatal(err)
	}
	if err := g.Associate(loser, other); err != nil {
		t.Fatal(err)
	}

	winBefore, _ := g.shortTermEdges.Get(core.EdgeKey{From: winner, To: other})
	loseBefore, _ := g.shortTermEdges.Get(core.EdgeKey{From: loser, To: other})

	g.CompetitiveLearning([]core.ConceptID{winner}, []core.ConceptID{loser})

	winAfter, _ := g.shortTermEdges.Get(core.EdgeKey{From: winner, To: other})
	loseAfter, _ := g.shortTermEdges.Get(core.EdgeKey{From: loser, To: other})

	if winAfter.Weight.Value <= winBefore.Weight.Value {
		t.Error("Winner edges should be boosted")
	}
	if loseAfter.Weight.Value >= loseBefore.Weight.Value {
		t.Error("Loser edges should be weakened")
	}
}
