package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/theQuarky/leafmind/pkg/core"
)

// Stats summarizes persistence activity.
type Stats struct {
	TotalConceptsStored uint64    `msgpack:"total_concepts_stored"`
	TotalEdgesStored    uint64    `msgpack:"total_edges_stored"`
	LastSaveTime        time.Time `msgpack:"last_save_time"`
	LastLoadTime        time.Time `msgpack:"last_load_time"`
	SaveCount           uint64    `msgpack:"save_count"`
	LoadCount           uint64    `msgpack:"load_count"`
	DatabaseSizeBytes   int64     `msgpack:"database_size_bytes"`
	CacheHitRate        float64   `msgpack:"cache_hit_rate"`

	// AutoSaveStatus carries the outcome of the most recent auto-save
	// tick: "ok", "disabled", or the last error text. Background saves
	// never kill their task; failures surface here.
	AutoSaveStatus string `msgpack:"auto_save_status"`
}

// Store is the durable substrate: an embedded ordered key-value database
// with a read-through cache in front of it. The cache is updated only on
// successful store reads and writes, so it can never disagree with disk.
type Store struct {
	db     *badger.DB
	config core.PersistenceConfig

	cacheMu     sync.RWMutex
	cache       map[string][]byte
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	statsMu sync.Mutex
	stats   Stats
}

// NewStore opens (creating if needed) the database directory.
func NewStore(config core.PersistenceConfig) (*Store, error) {
	log.Printf("initializing persistent memory store at %s", config.DBPath)

	if err := os.MkdirAll(config.DBPath, 0755); err != nil {
		return nil, fmt.Errorf("create db path: %w", err)
	}

	opts := badger.DefaultOptions(config.DBPath).
		WithLogger(nil).
		WithSyncWrites(config.EnableWAL)
	if config.EnableCompression {
		opts = opts.WithCompression(options.ZSTD)
	} else {
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	now := time.Now()
	return &Store{
		db:     db,
		config: config,
		cache:  make(map[string][]byte),
		stats: Stats{
			LastSaveTime:   now,
			LastLoadTime:   now,
			AutoSaveStatus: "disabled",
		},
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Single put/get/delete
// ---------------------------------------------------------------------------

// put writes one key and mirrors the value into the cache on success.
func (s *Store) put(key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	s.cacheSet(key, value)
	return nil
}

// get reads one key through the cache. Returns (nil, false, nil) when the
// key does not exist.
func (s *Store) get(key []byte) ([]byte, bool, error) {
	if value, ok := s.cacheGet(key); ok {
		s.cacheHits.Add(1)
		return value, true, nil
	}
	s.cacheMisses.Add(1)

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}

	s.cacheSet(key, value)
	return value, true, nil
}

// delete removes one key from the store and the cache.
func (s *Store) delete(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	s.cacheDelete(key)
	return nil
}

// StoreConcept persists a single concept.
func (s *Store) StoreConcept(concept *core.Concept) error {
	value, err := encodeConcept(concept)
	if err != nil {
		return err
	}
	if err := s.put(conceptKey(concept.ID), value); err != nil {
		return err
	}

	s.statsMu.Lock()
	s.stats.TotalConceptsStored++
	s.statsMu.Unlock()
	return nil
}

// LoadConcept reads a single concept; ok is false when absent.
func (s *Store) LoadConcept(id core.ConceptID) (core.Concept, bool, error) {
	value, ok, err := s.get(conceptKey(id))
	if err != nil || !ok {
		return core.Concept{}, false, err
	}
	concept, err := decodeConcept(value)
	if err != nil {
		return core.Concept{}, false, err
	}
	return concept, true, nil
}

// StoreEdge persists a single zone-tagged edge.
func (s *Store) StoreEdge(edge *core.SynapticEdge, zone core.MemoryZone) error {
	value, err := encodeEdge(edge)
	if err != nil {
		return err
	}
	if err := s.put(edgeKey(edge.From, edge.To, zone), value); err != nil {
		return err
	}

	s.statsMu.Lock()
	s.stats.TotalEdgesStored++
	s.statsMu.Unlock()
	return nil
}

// LoadEdge reads a single zone-tagged edge; ok is false when absent.
func (s *Store) LoadEdge(from, to core.ConceptID, zone core.MemoryZone) (core.SynapticEdge, bool, error) {
	value, ok, err := s.get(edgeKey(from, to, zone))
	if err != nil || !ok {
		return core.SynapticEdge{}, false, err
	}
	edge, err := decodeEdge(value)
	if err != nil {
		return core.SynapticEdge{}, false, err
	}
	return edge, true, nil
}

// StoreWorkingMemory persists a working-memory timestamp.
func (s *Store) StoreWorkingMemory(id core.ConceptID, ts time.Time) error {
	value, err := encodeTimestamp(ts)
	if err != nil {
		return err
	}
	return s.put(workingKey(id), value)
}

// LoadWorkingMemory reads a working-memory timestamp; ok is false when
// absent.
func (s *Store) LoadWorkingMemory(id core.ConceptID) (time.Time, bool, error) {
	value, ok, err := s.get(workingKey(id))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ts, err := decodeTimestamp(value)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

// StoreMemoryConfig persists the memory configuration.
func (s *Store) StoreMemoryConfig(config *core.MemoryConfig) error {
	value, err := encodeMemoryConfig(config)
	if err != nil {
		return err
	}
	if err := s.put([]byte(keyConfig), value); err != nil {
		return err
	}
	log.Println("stored memory configuration")
	return nil
}

// LoadMemoryConfig reads the memory configuration; ok is false when the
// database has never stored one.
func (s *Store) LoadMemoryConfig() (core.MemoryConfig, bool, error) {
	value, ok, err := s.get([]byte(keyConfig))
	if err != nil || !ok {
		return core.MemoryConfig{}, false, err
	}
	config, err := decodeMemoryConfig(value)
	if err != nil {
		return core.MemoryConfig{}, false, err
	}
	return config, true, nil
}

// StoreMetadata persists a named metadata string.
func (s *Store) StoreMetadata(name, value string) error {
	return s.put(metaKey(name), []byte(value))
}

// LoadMetadata reads a named metadata string; ok is false when absent.
func (s *Store) LoadMetadata(name string) (string, bool, error) {
	value, ok, err := s.get(metaKey(name))
	if err != nil || !ok {
		return "", false, err
	}
	return string(value), true, nil
}

// DeleteConcept removes a concept record.
func (s *Store) DeleteConcept(id core.ConceptID) error {
	return s.delete(conceptKey(id))
}

// DeleteEdge removes a zone-tagged edge record.
func (s *Store) DeleteEdge(from, to core.ConceptID, zone core.MemoryZone) error {
	return s.delete(edgeKey(from, to, zone))
}

// DeleteWorkingMemory removes a working-memory record.
func (s *Store) DeleteWorkingMemory(id core.ConceptID) error {
	return s.delete(workingKey(id))
}

// ---------------------------------------------------------------------------
// Batched snapshots
// ---------------------------------------------------------------------------

// BatchStoreConcepts writes concepts through a write batch.
func (s *Store) BatchStoreConcepts(concepts []core.Concept) error {
	if len(concepts) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	cacheUpdates := make(map[string][]byte, len(concepts))
	for i := range concepts {
		key := conceptKey(concepts[i].ID)
		value, err := encodeConcept(&concepts[i])
		if err != nil {
			return err
		}
		if err := wb.Set(key, value); err != nil {
			return fmt.Errorf("batch set concept: %w", err)
		}
		cacheUpdates[string(key)] = value
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("batch store concepts: %w", err)
	}

	s.cacheSetAll(cacheUpdates)

	s.statsMu.Lock()
	s.stats.TotalConceptsStored += uint64(len(concepts))
	s.stats.SaveCount++
	s.stats.LastSaveTime = time.Now()
	s.statsMu.Unlock()

	log.Printf("batch stored %d concepts", len(concepts))
	return nil
}

// BatchStoreEdges writes zone-tagged edges through a write batch.
func (s *Store) BatchStoreEdges(edges []core.SynapticEdge, zone core.MemoryZone) error {
	if len(edges) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	cacheUpdates := make(map[string][]byte, len(edges))
	for i := range edges {
		key := edgeKey(edges[i].From, edges[i].To, zone)
		value, err := encodeEdge(&edges[i])
		if err != nil {
			return err
		}
		if err := wb.Set(key, value); err != nil {
			return fmt.Errorf("batch set edge: %w", err)
		}
		cacheUpdates[string(key)] = value
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("batch store edges: %w", err)
	}

	s.cacheSetAll(cacheUpdates)

	s.statsMu.Lock()
	s.stats.TotalEdgesStored += uint64(len(edges))
	s.stats.SaveCount++
	s.stats.LastSaveTime = time.Now()
	s.statsMu.Unlock()

	log.Printf("batch stored %d %s edges", len(edges), zone)
	return nil
}

// BatchStoreWorkingMemory writes working-memory entries through a write
// batch.
func (s *Store) BatchStoreWorkingMemory(entries map[core.ConceptID]time.Time) error {
	if len(entries) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	cacheUpdates := make(map[string][]byte, len(entries))
	for id, ts := range entries {
		key := workingKey(id)
		value, err := encodeTimestamp(ts)
		if err != nil {
			return err
		}
		if err := wb.Set(key, value); err != nil {
			return fmt.Errorf("batch set working memory: %w", err)
		}
		cacheUpdates[string(key)] = value
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("batch store working memory: %w", err)
	}

	s.cacheSetAll(cacheUpdates)
	return nil
}

// ---------------------------------------------------------------------------
// Prefix scans (used on open to rebuild state)
// ---------------------------------------------------------------------------

// scanPrefix calls fn for every key/value under the prefix.
func (s *Store) scanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %q: %w", prefix, err)
	}
	return nil
}

// LoadAllConcepts returns every stored concept keyed by id.
func (s *Store) LoadAllConcepts() (map[core.ConceptID]core.Concept, error) {
	concepts := make(map[core.ConceptID]core.Concept)

	err := s.scanPrefix([]byte(prefixConcept), func(_, value []byte) error {
		concept, err := decodeConcept(value)
		if err != nil {
			return err
		}
		concepts[concept.ID] = concept
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.statsMu.Lock()
	s.stats.LoadCount++
	s.stats.LastLoadTime = time.Now()
	s.statsMu.Unlock()

	log.Printf("loaded %d concepts from database", len(concepts))
	return concepts, nil
}

// LoadAllEdges returns the short-term and long-term edge tables.
func (s *Store) LoadAllEdges() (map[core.EdgeKey]core.SynapticEdge, map[core.EdgeKey]core.SynapticEdge, error) {
	shortTerm := make(map[core.EdgeKey]core.SynapticEdge)
	longTerm := make(map[core.EdgeKey]core.SynapticEdge)

	load := func(prefix string, into map[core.EdgeKey]core.SynapticEdge) error {
		return s.scanPrefix([]byte(prefix), func(_, value []byte) error {
			edge, err := decodeEdge(value)
			if err != nil {
				return err
			}
			into[edge.Key()] = edge
			return nil
		})
	}

	if err := load(prefixShortTermEdge, shortTerm); err != nil {
		return nil, nil, err
	}
	if err := load(prefixLongTermEdge, longTerm); err != nil {
		return nil, nil, err
	}

	log.Printf("loaded %d short-term and %d long-term edges", len(shortTerm), len(longTerm))
	return shortTerm, longTerm, nil
}

// LoadAllWorkingMemory returns every working-memory entry.
func (s *Store) LoadAllWorkingMemory() (map[core.ConceptID]time.Time, error) {
	working := make(map[core.ConceptID]time.Time)

	err := s.scanPrefix([]byte(prefixWorking), func(key, value []byte) error {
		id, err := conceptIDFromWorkingKey(key)
		if err != nil {
			// Unparseable key: skip rather than abort the whole load.
			return nil
		}
		ts, err := decodeTimestamp(value)
		if err != nil {
			return err
		}
		working[id] = ts
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("loaded %d working memory entries", len(working))
	return working, nil
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

// Sync forces a synchronous flush to disk.
func (s *Store) Sync() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("sync database: %w", err)
	}
	log.Println("database synchronized to disk")
	return nil
}

// Backup writes a full store snapshot into backupDir. Each call produces a
// new timestamped snapshot file; Restore uses the latest one.
func (s *Store) Backup(backupDir string) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("leafmind-%020d.bak", time.Now().UnixNano())
	path := filepath.Join(backupDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}

	if _, err := s.db.Backup(f, 0); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("backup database: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close backup file: %w", err)
	}

	log.Printf("database backed up to %s", path)
	return nil
}

// Restore replaces the database contents from the latest snapshot in
// backupDir. The caller must clear and reload any in-memory state.
func (s *Store) Restore(backupDir string) error {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return fmt.Errorf("read backup dir: %w", err)
	}

	var snapshots []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".bak" {
			snapshots = append(snapshots, entry.Name())
		}
	}
	if len(snapshots) == 0 {
		return fmt.Errorf("no backup snapshots in %s", backupDir)
	}
	sort.Strings(snapshots)
	latest := filepath.Join(backupDir, snapshots[len(snapshots)-1])

	f, err := os.Open(latest)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop database before restore: %w", err)
	}
	if err := s.db.Load(f, 256); err != nil {
		return fmt.Errorf("restore database: %w", err)
	}

	s.ClearCache()

	log.Printf("database restored from %s", latest)
	return nil
}

// Compact asks the store to reclaim space: flatten the LSM tree and run
// value-log garbage collection until it reports nothing left to do.
func (s *Store) Compact() error {
	log.Println("starting database compaction")

	if err := s.db.Flatten(2); err != nil {
		return fmt.Errorf("flatten database: %w", err)
	}
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			// ErrNoRewrite means there was nothing worth collecting.
			break
		}
	}

	log.Println("database compaction completed")
	return nil
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func (s *Store) cacheGet(key []byte) ([]byte, bool) {
	s.cacheMu.RLock()
	value, ok := s.cache[string(key)]
	s.cacheMu.RUnlock()
	return value, ok
}

func (s *Store) cacheSet(key, value []byte) {
	s.cacheMu.Lock()
	s.cache[string(key)] = value
	s.cacheMu.Unlock()
}

func (s *Store) cacheSetAll(updates map[string][]byte) {
	s.cacheMu.Lock()
	for key, value := range updates {
		s.cache[key] = value
	}
	s.cacheMu.Unlock()
}

func (s *Store) cacheDelete(key []byte) {
	s.cacheMu.Lock()
	delete(s.cache, string(key))
	s.cacheMu.Unlock()
}

// ClearCache drops the read-through cache and resets its counters.
func (s *Store) ClearCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string][]byte)
	s.cacheMu.Unlock()
	s.cacheHits.Store(0)
	s.cacheMisses.Store(0)
	log.Println("cleared persistence cache")
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// SetAutoSaveStatus records the outcome of the latest auto-save tick.
func (s *Store) SetAutoSaveStatus(status string) {
	s.statsMu.Lock()
	s.stats.AutoSaveStatus = status
	s.statsMu.Unlock()
}

// GetStats returns a snapshot of persistence statistics.
func (s *Store) GetStats() Stats {
	s.statsMu.Lock()
	stats := s.stats
	s.statsMu.Unlock()

	hits := s.cacheHits.Load()
	misses := s.cacheMisses.Load()
	if hits+misses > 0 {
		stats.CacheHitRate = float64(hits) / float64(hits+misses)
	}

	stats.DatabaseSizeBytes = s.databaseSize()
	return stats
}

// databaseSize sums file sizes under the database directory.
func (s *Store) databaseSize() int64 {
	var total int64
	_ = filepath.WalkDir(s.config.DBPath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
