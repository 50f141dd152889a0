package persistence

import (
	"github.com/theQuarky/leafmind/pkg/core"
)

// Key prefixes of the on-disk layout. Identifiers are raw 16-byte values
// except in working-memory keys, which use the canonical textual form so
// the id can be recovered from the key alone.
const (
	prefixConcept       = "concept:"
	prefixShortTermEdge = "st_edge:"
	prefixLongTermEdge  = "lt_edge:"
	prefixWorking       = "working:"
	prefixMeta          = "meta:"
	keyConfig           = "config"
)

// conceptKey is "concept:" + 16 raw id bytes.
func conceptKey(id core.ConceptID) []byte {
	key := make([]byte, 0, len(prefixConcept)+16)
	key = append(key, prefixConcept...)
	return append(key, id.Bytes()...)
}

// edgeKey is the zone prefix + from bytes + ':' + to bytes.
func edgeKey(from, to core.ConceptID, zone core.MemoryZone) []byte {
	prefix := prefixShortTermEdge
	if zone == core.ZoneLongTerm {
		prefix = prefixLongTermEdge
	}

	key := make([]byte, 0, len(prefix)+33)
	key = append(key, prefix...)
	key = append(key, from.Bytes()...)
	key = append(key, ':')
	return append(key, to.Bytes()...)
}

// workingKey is "working:" + the 36-character textual id.
func workingKey(id core.ConceptID) []byte {
	return []byte(prefixWorking + id.String())
}

// metaKey is "meta:" + name.
func metaKey(name string) []byte {
	return []byte(prefixMeta + name)
}

// conceptIDFromWorkingKey recovers the id from a working-memory key.
func conceptIDFromWorkingKey(key []byte) (core.ConceptID, error) {
	if len(key) <= len(prefixWorking) {
		return core.ConceptID{}, core.ErrInvalidID
	}
	return core.ParseConceptID(string(key[len(prefixWorking):]))
}
