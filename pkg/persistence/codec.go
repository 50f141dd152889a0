package persistence

import (
	"fmt"
	"time"

	"github.com/theQuarky/leafmind/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// Values are stored as msgpack: a stable, deterministic binary encoding of
// the value objects. Identifiers serialize as raw 16-byte strings (see
// core.ConceptID), timestamps as msgpack time (seconds and nanos).

func encodeConcept(concept *core.Concept) ([]byte, error) {
	data, err := msgpack.Marshal(concept)
	if err != nil {
		return nil, fmt.Errorf("encode concept: %w", err)
	}
	return data, nil
}

func decodeConcept(data []byte) (core.Concept, error) {
	var concept core.Concept
	if err := msgpack.Unmarshal(data, &concept); err != nil {
		return core.Concept{}, fmt.Errorf("%w: concept: %v", core.ErrCorruptedRecord, err)
	}
	return concept, nil
}

func encodeEdge(edge *core.SynapticEdge) ([]byte, error) {
	data, err := msgpack.Marshal(edge)
	if err != nil {
		return nil, fmt.Errorf("encode edge: %w", err)
	}
	return data, nil
}

func decodeEdge(data []byte) (core.SynapticEdge, error) {
	var edge core.SynapticEdge
	if err := msgpack.Unmarshal(data, &edge); err != nil {
		return core.SynapticEdge{}, fmt.Errorf("%w: edge: %v", core.ErrCorruptedRecord, err)
	}
	return edge, nil
}

func encodeTimestamp(ts time.Time) ([]byte, error) {
	data, err := msgpack.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("encode timestamp: %w", err)
	}
	return data, nil
}

func decodeTimestamp(data []byte) (time.Time, error) {
	var ts time.Time
	if err := msgpack.Unmarshal(data, &ts); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %v", core.ErrCorruptedRecord, err)
	}
	return ts, nil
}

func encodeMemoryConfig(config *core.MemoryConfig) ([]byte, error) {
	data, err := msgpack.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func decodeMemoryConfig(data []byte) (core.MemoryConfig, error) {
	var config core.MemoryConfig
	if err := msgpack.Unmarshal(data, &config); err != nil {
		return core.MemoryConfig{}, fmt.Errorf("%w: config: %v", core.ErrCorruptedRecord, err)
	}
	return config, nil
}
