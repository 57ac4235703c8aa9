// Package cache implements the incremental compilation cache: stable
// declaration keys, content hashes, the dependency graph, change detection,
// restorable body effects, and the persisted store.
package cache

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// DeclKey identifies a declaration stably across re-parses: the per-
// compilation uuid changes every build, the key does not.
type DeclKey struct {
	File string `msgpack:"file"`
	Kind string `msgpack:"kind"`
	Name string `msgpack:"name"`
}

func (k DeclKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.File, k.Kind, k.Name)
}

// DeclKeyMap is the per-compilation bimap between declaration uuids and
// their stable keys.
type DeclKeyMap struct {
	UUIDToKey map[uuid.UUID]DeclKey `msgpack:"uuid_to_key"`
	keyToUUID map[string]uuid.UUID
}

func NewDeclKeyMap() *DeclKeyMap {
	return &DeclKeyMap{UUIDToKey: map[uuid.UUID]DeclKey{}, keyToUUID: map[string]uuid.UUID{}}
}

func (m *DeclKeyMap) Add(id uuid.UUID, key DeclKey) {
	m.UUIDToKey[id] = key
	if m.keyToUUID == nil {
		m.keyToUUID = map[string]uuid.UUID{}
	}
	m.keyToUUID[key.String()] = id
}

// Key returns the DeclKey of a uuid.
func (m *DeclKeyMap) Key(id uuid.UUID) (DeclKey, bool) {
	k, ok := m.UUIDToKey[id]
	return k, ok
}

// UUID returns the uuid of a DeclKey.
func (m *DeclKeyMap) UUID(key DeclKey) (uuid.UUID, bool) {
	if m.keyToUUID == nil {
		m.rebuildReverse()
	}
	id, ok := m.keyToUUID[key.String()]
	return id, ok
}

// rebuildReverse restores the reverse index after deserialization.
func (m *DeclKeyMap) rebuildReverse() {
	m.keyToUUID = make(map[string]uuid.UUID, len(m.UUIDToKey))
	for id, key := range m.UUIDToKey {
		m.keyToUUID[key.String()] = id
	}
}

// Keys returns every DeclKey, sorted for deterministic iteration.
func (m *DeclKeyMap) Keys() []DeclKey {
	keys := make([]DeclKey, 0, len(m.UUIDToKey))
	for _, k := range m.UUIDToKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// BuildDeclKeyMap assigns a DeclKey to every declaration in the program.
// Methods key as "Class.method" under kind "method".
func BuildDeclKeyMap(program *ast.Program, sm *source.Map) *DeclKeyMap {
	m := NewDeclKeyMap()
	pathOf := func(sp source.Span) string {
		if f := sm.Get(sp.FileID); f != nil {
			return f.Path
		}
		return ""
	}
	for _, f := range program.Functions {
		m.Add(f.ID, DeclKey{File: pathOf(f.Sp), Kind: "fn", Name: f.Name.Value})
	}
	for _, c := range program.Classes {
		m.Add(c.ID, DeclKey{File: pathOf(c.Sp), Kind: "class", Name: c.Name.Value})
		for _, method := range c.Methods {
			m.Add(method.ID, DeclKey{
				File: pathOf(method.Sp),
				Kind: "method",
				Name: c.Name.Value + "." + method.Name.Value,
			})
		}
	}
	for _, t := range program.Traits {
		m.Add(t.ID, DeclKey{File: pathOf(t.Sp), Kind: "trait", Name: t.Name.Value})
	}
	for _, e := range program.Enums {
		m.Add(e.ID, DeclKey{File: pathOf(e.Sp), Kind: "enum", Name: e.Name.Value})
	}
	for _, e := range program.Errors {
		m.Add(e.ID, DeclKey{File: pathOf(e.Sp), Kind: "error", Name: e.Name.Value})
	}
	for _, e := range program.ExternFns {
		m.Add(e.ID, DeclKey{File: pathOf(e.Sp), Kind: "extern", Name: e.Name.Value})
	}
	if program.App != nil {
		m.Add(program.App.ID, DeclKey{File: pathOf(program.App.Sp), Kind: "app", Name: program.App.Name.Value})
		for _, method := range program.App.Methods {
			m.Add(method.ID, DeclKey{
				File: pathOf(method.Sp),
				Kind: "method",
				Name: program.App.Name.Value + "." + method.Name.Value,
			})
		}
	}
	for _, s := range program.Stages {
		m.Add(s.ID, DeclKey{File: pathOf(s.Sp), Kind: "stage", Name: s.Name.Value})
		for _, method := range s.Methods {
			m.Add(method.ID, DeclKey{
				File: pathOf(method.Sp),
				Kind: "method",
				Name: s.Name.Value + "." + method.Name.Value,
			})
		}
	}
	return m
}

// FnErrorsKey converts a DeclKey to the mangled name used in the env's
// per-function error sets ("Class.method" → "Class$method").
func FnErrorsKey(key DeclKey) string {
	if key.Kind == "method" {
		for i := 0; i < len(key.Name); i++ {
			if key.Name[i] == '.' {
				return key.Name[:i] + "$" + key.Name[i+1:]
			}
		}
	}
	return key.Name
}
