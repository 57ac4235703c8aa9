package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/plutolang/pluto/internal/diagnostics"
)

// Store persists compilation caches in a sqlite database next to the build
// output. Each record is one msgpack blob per cache section, stamped with
// the session that wrote it. Corrupt or truncated records are recoverable
// errors: callers fall back to a full build.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS cache_blobs (
	section TEXT PRIMARY KEY,
	data    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// OpenStore opens (or creates) the cache database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// wire forms: uuids become strings so msgpack round-trips map keys.

type wireEdge struct {
	To   string `msgpack:"to"`
	Kind int    `msgpack:"kind"`
}

type wireGraph struct {
	Nodes []string              `msgpack:"nodes"`
	Edges map[string][]wireEdge `msgpack:"edges"`
}

type wireCache struct {
	DeclHashes  map[string]DeclHashes         `msgpack:"decl_hashes"`
	Graph       wireGraph                     `msgpack:"dep_graph"`
	KeyMap      map[string]DeclKey            `msgpack:"old_key_map"`
	BodyEffects map[string]*CachedBodyEffects `msgpack:"body_effects"`
	FnErrorSets map[string][]string           `msgpack:"fn_error_sets"`
}

func toWireCache(c *CompilationCache) *wireCache {
	w := &wireCache{
		DeclHashes:  c.DeclHashes,
		Graph:       wireGraph{Edges: map[string][]wireEdge{}},
		KeyMap:      map[string]DeclKey{},
		BodyEffects: c.BodyEffects,
		FnErrorSets: c.FnErrorSets,
	}
	for id := range c.DepGraph.Nodes {
		w.Graph.Nodes = append(w.Graph.Nodes, id.String())
	}
	for from, edges := range c.DepGraph.Edges {
		for _, e := range edges {
			w.Graph.Edges[from.String()] = append(w.Graph.Edges[from.String()], wireEdge{To: e.To.String(), Kind: int(e.Kind)})
		}
	}
	for id, key := range c.OldKeyMap.UUIDToKey {
		w.KeyMap[id.String()] = key
	}
	return w
}

func fromWireCache(w *wireCache) (*CompilationCache, error) {
	c := NewCompilationCache()
	if w.DeclHashes != nil {
		c.DeclHashes = w.DeclHashes
	}
	if w.BodyEffects != nil {
		c.BodyEffects = w.BodyEffects
	}
	if w.FnErrorSets != nil {
		c.FnErrorSets = w.FnErrorSets
	}
	for _, idStr := range w.Graph.Nodes {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt node id %q: %w", idStr, err)
		}
		c.DepGraph.AddNode(id)
	}
	for fromStr, edges := range w.Graph.Edges {
		from, err := uuid.Parse(fromStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt edge source %q: %w", fromStr, err)
		}
		for _, e := range edges {
			to, err := uuid.Parse(e.To)
			if err != nil {
				return nil, fmt.Errorf("corrupt edge target %q: %w", e.To, err)
			}
			c.DepGraph.AddEdge(from, to, EdgeKind(e.Kind))
		}
	}
	for idStr, key := range w.KeyMap {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt key map id %q: %w", idStr, err)
		}
		c.OldKeyMap.Add(id, key)
	}
	return c, nil
}

// Save writes the cache, stamping the writing session and time.
func (s *Store) Save(c *CompilationCache) error {
	blob, err := msgpack.Marshal(toWireCache(c))
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		`INSERT INTO cache_blobs (section, data) VALUES ('cache', ?)
		 ON CONFLICT(section) DO UPDATE SET data = excluded.data`, blob); err != nil {
		return err
	}
	for key, value := range map[string]string{
		"session":    uuid.NewString(),
		"written_at": time.Now().UTC().Format(time.RFC3339),
		"format":     "1",
	} {
		if _, err := tx.Exec(
			`INSERT INTO cache_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load reads the cache. A missing record returns an empty cache; a corrupt
// one returns a KindIncremental diagnostic so the driver can fall back to a
// full build.
func (s *Store) Load() (*CompilationCache, *diagnostics.CompileError) {
	var blob []byte
	err := s.db.QueryRow(`SELECT data FROM cache_blobs WHERE section = 'cache'`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return NewCompilationCache(), nil
	}
	if err != nil {
		return nil, diagnostics.IncrementalErrf("read cache: %v", err)
	}
	var w wireCache
	if err := msgpack.Unmarshal(blob, &w); err != nil {
		return nil, diagnostics.IncrementalErrf("corrupt cache blob: %v", err)
	}
	c, convErr := fromWireCache(&w)
	if convErr != nil {
		return nil, diagnostics.IncrementalErrf("corrupt cache contents: %v", convErr)
	}
	return c, nil
}
