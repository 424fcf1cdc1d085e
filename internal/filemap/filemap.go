package filemap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/tagd-dev/tagd/pkg/types"
)

// Map type names. These appear in the key layout and in diagnostics.
const (
	TypeSymbolNames = "symnames"
	TypeSymbols     = "symbols"
	TypeTargets     = "targets"
	TypeUsrs        = "usrs"
)

// Store owns the Badger database holding every file's symbol maps.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open filemap store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store backed by memory only. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory filemap store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func keyPrefix(fileID uint32, mapType string) []byte {
	var buf bytes.Buffer
	buf.WriteString("fm/")
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], fileID)
	buf.Write(id[:])
	buf.WriteByte('/')
	buf.WriteString(mapType)
	buf.WriteByte('/')
	return buf.Bytes()
}

// FileData is the complete symbol output for one file, produced by a merge.
type FileData struct {
	SymbolNames map[string][]types.Location
	Symbols     map[types.Location]types.Symbol
	Targets     map[types.Location]map[types.Location]types.RelationKind
	Usrs        map[string][]types.Location
}

type targetEntry struct {
	Location types.Location     `cbor:"1,keyasint"`
	Kind     types.RelationKind `cbor:"2,keyasint"`
}

// Write replaces every map for fileID with the contents of data in a single
// transaction. Passing an empty FileData clears the file.
func (s *Store) Write(fileID uint32, data *FileData) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, mapType := range []string{TypeSymbolNames, TypeSymbols, TypeTargets, TypeUsrs} {
			if err := deletePrefix(txn, keyPrefix(fileID, mapType)); err != nil {
				return err
			}
		}
		for name, locations := range data.SymbolNames {
			types.SortLocations(locations)
			if err := setCBOR(txn, nameKey(fileID, TypeSymbolNames, name), locations); err != nil {
				return err
			}
		}
		for loc, sym := range data.Symbols {
			if err := setCBOR(txn, locationKey(fileID, TypeSymbols, loc), sym); err != nil {
				return err
			}
		}
		for loc, targets := range data.Targets {
			entries := make([]targetEntry, 0, len(targets))
			for tloc, kind := range targets {
				entries = append(entries, targetEntry{Location: tloc, Kind: kind})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Location.Less(entries[j].Location) })
			if err := setCBOR(txn, locationKey(fileID, TypeTargets, loc), entries); err != nil {
				return err
			}
		}
		for usr, locations := range data.Usrs {
			types.SortLocations(locations)
			if err := setCBOR(txn, nameKey(fileID, TypeUsrs, usr), locations); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove drops every map for fileID.
func (s *Store) Remove(fileID uint32) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, mapType := range []string{TypeSymbolNames, TypeSymbols, TypeTargets, TypeUsrs} {
			if err := deletePrefix(txn, keyPrefix(fileID, mapType)); err != nil {
				return err
			}
		}
		return nil
	})
}

func nameKey(fileID uint32, mapType, name string) []byte {
	return append(keyPrefix(fileID, mapType), name...)
}

func locationKey(fileID uint32, mapType string, loc types.Location) []byte {
	return append(keyPrefix(fileID, mapType), loc.Key()...)
}

func setCBOR(txn *badger.Txn, key []byte, value any) error {
	data, err := cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode filemap value: %w", err)
	}
	return txn.Set(key, data)
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Map is an immutable, sorted snapshot of one per-file map, materialized at
// open time. A missing backing map opens as an empty Map, never an error.
type Map[K any, V any] struct {
	keys   []K
	values []V
	cmp    func(a, b K) int
}

// Count returns the number of entries.
func (m *Map[K, V]) Count() int { return len(m.keys) }

// KeyAt returns the i'th key in sort order.
func (m *Map[K, V]) KeyAt(i int) K { return m.keys[i] }

// ValueAt returns the i'th value in sort order.
func (m *Map[K, V]) ValueAt(i int) V { return m.values[i] }

// Lookup returns the value for key and whether it exists.
func (m *Map[K, V]) Lookup(key K) (V, bool) {
	i := sort.Search(len(m.keys), func(i int) bool { return m.cmp(m.keys[i], key) >= 0 })
	if i < len(m.keys) && m.cmp(m.keys[i], key) == 0 {
		return m.values[i], true
	}
	var zero V
	return zero, false
}

// NameMap maps symbol names (or USRs) to their location sets.
type NameMap = Map[string, []types.Location]

// SymbolMap maps locations to symbols.
type SymbolMap = Map[types.Location, types.Symbol]

// TargetMap maps locations to their reference targets.
type TargetMap = Map[types.Location, map[types.Location]types.RelationKind]

// OpenSymbolNames opens the symnames map for fileID.
func (s *Store) OpenSymbolNames(fileID uint32) (*NameMap, error) {
	return s.openNameMap(fileID, TypeSymbolNames)
}

// OpenUsrs opens the usrs map for fileID.
func (s *Store) OpenUsrs(fileID uint32) (*NameMap, error) {
	return s.openNameMap(fileID, TypeUsrs)
}

func (s *Store) openNameMap(fileID uint32, mapType string) (*NameMap, error) {
	m := &NameMap{cmp: strings.Compare}
	prefix := keyPrefix(fileID, mapType)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			var locations []types.Location
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &locations)
			}); err != nil {
				return err
			}
			m.keys = append(m.keys, name)
			m.values = append(m.values, locations)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open %s map for file %d: %w", mapType, fileID, err)
	}
	return m, nil
}

// OpenSymbols opens the symbols map for fileID.
func (s *Store) OpenSymbols(fileID uint32) (*SymbolMap, error) {
	m := &SymbolMap{cmp: types.Location.Compare}
	prefix := keyPrefix(fileID, TypeSymbols)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			loc, err := types.LocationFromKey(item.Key()[len(prefix):])
			if err != nil {
				return err
			}
			var sym types.Symbol
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &sym)
			}); err != nil {
				return err
			}
			m.keys = append(m.keys, loc)
			m.values = append(m.values, sym)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open symbols map for file %d: %w", fileID, err)
	}
	return m, nil
}

// OpenTargets opens the targets map for fileID.
func (s *Store) OpenTargets(fileID uint32) (*TargetMap, error) {
	m := &TargetMap{cmp: types.Location.Compare}
	prefix := keyPrefix(fileID, TypeTargets)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			loc, err := types.LocationFromKey(item.Key()[len(prefix):])
			if err != nil {
				return err
			}
			var entries []targetEntry
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &entries)
			}); err != nil {
				return err
			}
			targets := make(map[types.Location]types.RelationKind, len(entries))
			for _, e := range entries {
				targets[e.Location] = e.Kind
			}
			m.keys = append(m.keys, loc)
			m.values = append(m.values, targets)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open targets map for file %d: %w", fileID, err)
	}
	return m, nil
}
