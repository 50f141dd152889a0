package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ConceptID is the 128-bit identifier of a concept node. Equality and
// hashing are by identifier alone; content plays no part.
type ConceptID uuid.UUID

// NewConceptID generates a fresh random concept ID.
func NewConceptID() ConceptID {
	return ConceptID(uuid.New())
}

// ConceptIDFromString derives a deterministic ID from arbitrary text
// (SHA1 in the OID namespace). Useful for content-addressed lookups.
func ConceptIDFromString(s string) ConceptID {
	return ConceptID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(s)))
}

// ParseConceptID parses the canonical 36-character textual form.
func ParseConceptID(s string) (ConceptID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ConceptID{}, ErrInvalidID
	}
	return ConceptID(u), nil
}

// String returns the canonical textual form.
func (id ConceptID) String() string {
	return uuid.UUID(id).String()
}

// Bytes returns the raw 16-byte value, used in storage key layouts.
func (id ConceptID) Bytes() []byte {
	b := [16]byte(id)
	return b[:]
}

// EncodeMsgpack stores the ID as its raw 16 bytes.
func (id ConceptID) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(id.Bytes())
}

// DecodeMsgpack restores the ID from its raw 16 bytes.
func (id *ConceptID) DecodeMsgpack(dec *msgpack.Decoder) error {
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(b) != 16 {
		return ErrCorruptedRecord
	}
	copy(id[:], b)
	return nil
}

// EdgeKey identifies a directed synaptic edge by its endpoints.
type EdgeKey struct {
	From ConceptID `msgpack:"from"`
	To   ConceptID `msgpack:"to"`
}

// Reversed returns the key of the opposite direction.
func (k EdgeKey) Reversed() EdgeKey {
	return EdgeKey{From: k.To, To: k.From}
}

// MemoryZone distinguishes the two edge containers.
type MemoryZone int

const (
	// ZoneShortTerm is the hippocampus analog: temporary storage awaiting
	// consolidation.
	ZoneShortTerm MemoryZone = iota
	// ZoneLongTerm is the cortex analog: consolidated storage.
	ZoneLongTerm
)

func (z MemoryZone) String() string {
	if z == ZoneLongTerm {
		return "long-term"
	}
	return "short-term"
}

// Concept is a single memory node: addressable content plus access metadata.
type Concept struct {
	ID           ConceptID         `msgpack:"id"`
	Content      string            `msgpack:"content"`
	Metadata     map[string]string `msgpack:"metadata"`
	CreatedAt    time.Time         `msgpack:"created_at"`
	LastAccessed time.Time         `msgpack:"last_accessed"`
	AccessCount  uint64            `msgpack:"access_count"`
}

// NewConcept creates a concept with a fresh random identifier.
func NewConcept(content string) *Concept {
	return NewConceptWithID(NewConceptID(), content)
}

// NewConceptWithID creates a concept with a caller-supplied identifier.
func NewConceptWithID(id ConceptID, content string) *Concept {
	now := time.Now()
	return &Concept{
		ID:           id,
		Content:      content,
		Metadata:     make(map[string]string),
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// Access refreshes the access timestamp and bumps the counter.
func (c *Concept) Access() {
	c.LastAccessed = time.Now()
	c.AccessCount++
}

// Synaptic weight bounds and thresholds.
const (
	WeightMin       = 0.0
	WeightMax       = 1.0
	WeightInitial   = 0.1
	WeightThreshold = 0.01
)

// SynapticWeight is a connection strength in [0, 1]. Strengthening is
// asymptotic toward 1; weakening is multiplicative, snapping to 0 below
// the activity threshold.
type SynapticWeight struct {
	Value float64 `msgpack:"value"`
}

// NewWeight clamps the given value into [WeightMin, WeightMax].
func NewWeight(v float64) SynapticWeight {
	return SynapticWeight{Value: clamp(v, WeightMin, WeightMax)}
}

// InitialWeight returns the weight assigned to new edges.
func InitialWeight() SynapticWeight {
	return SynapticWeight{Value: WeightInitial}
}

// Strengthen applies long-term potentiation: w += rate * (1 - w).
func (w *SynapticWeight) Strengthen(learningRate float64) {
	w.Value += learningRate * (WeightMax - w.Value)
	w.Value = clamp(w.Value, WeightMin, WeightMax)
}

// Weaken applies long-term depression: w *= (1 - rate), snapping to zero
// once the weight drops below the activity threshold.
func (w *SynapticWeight) Weaken(decayRate float64) {
	w.Value *= 1.0 - decayRate
	if w.Value < WeightThreshold {
		w.Value = 0.0
	}
}

// IsActive reports whether the weight is above the activity threshold.
func (w SynapticWeight) IsActive() bool {
	return w.Value > WeightThreshold
}

// SynapticEdge is a directed weighted link between two concepts.
type SynapticEdge struct {
	From            ConceptID      `msgpack:"from"`
	To              ConceptID      `msgpack:"to"`
	Weight          SynapticWeight `msgpack:"weight"`
	CreatedAt       time.Time      `msgpack:"created_at"`
	LastAccessed    time.Time      `msgpack:"last_accessed"`
	ActivationCount uint64         `msgpack:"activation_count"`
}

// NewEdge creates an edge at the initial weight.
func NewEdge(from, to ConceptID) *SynapticEdge {
	now := time.Now()
	return &SynapticEdge{
		From:         from,
		To:           to,
		Weight:       InitialWeight(),
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// Key returns the (from, to) map key of this edge.
func (e *SynapticEdge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To}
}

// Activate strengthens the edge, refreshes the access timestamp, and
// increments the activation counter.
func (e *SynapticEdge) Activate(learningRate float64) {
	e.Weight.Strengthen(learningRate)
	e.LastAccessed = time.Now()
	e.ActivationCount++
}

// Decay weakens the edge.
func (e *SynapticEdge) Decay(decayRate float64) {
	e.Weight.Weaken(decayRate)
}

// IsActive reports whether the edge still participates in recall.
func (e *SynapticEdge) IsActive() bool {
	return e.Weight.IsActive()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
