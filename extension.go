package gpkg

import (
	"database/sql"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tingold/gpkg-wkb/internal/log"
)

// Scope states whether an extension affects reading as well as writing.
type Scope string

const (
	ScopeReadWrite Scope = "read-write"
	ScopeWriteOnly Scope = "write-only"
)

// ParseScope converts a gpkg_extensions.scope literal into a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeReadWrite, ScopeWriteOnly:
		return Scope(s), nil
	}
	return "", invalid("scope", s, ErrScope)
}

// <author>_<extension>, where the author part has no underscore.
var extensionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+_[a-zA-Z0-9_]+$`)

// Nullable returns a non-null sql.NullString holding s.
func Nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func normalizeNull(s sql.NullString) sql.NullString {
	if !s.Valid {
		return sql.NullString{}
	}
	return s
}

// ExtensionKey identifies an extension entry.
type ExtensionKey struct {
	Table  sql.NullString
	Column sql.NullString
	Name   string
}

func newExtensionKey(table, column sql.NullString, name string) ExtensionKey {
	return ExtensionKey{Table: normalizeNull(table), Column: normalizeNull(column), Name: name}
}

// Extension is one row of gpkg_extensions: the use of an extension by the
// whole GeoPackage, a table, or a single column.
type Extension struct {
	table      sql.NullString
	column     sql.NullString
	name       string
	definition string
	scope      Scope
}

// NewExtension validates its arguments and returns an extension entry.
func NewExtension(table, column sql.NullString, name, definition string, scope Scope) (Extension, error) {
	table, column = normalizeNull(table), normalizeNull(column)
	switch {
	case column.Valid && !table.Valid:
		return Extension{}, invalid("table_name", "", ErrTableRequired)
	case table.Valid && table.String == "":
		return Extension{}, invalid("table_name", "", ErrEmptyField)
	case column.Valid && column.String == "":
		return Extension{}, invalid("column_name", "", ErrEmptyField)
	case name == "":
		return Extension{}, invalid("extension_name", "", ErrEmptyField)
	case !extensionNamePattern.MatchString(name):
		return Extension{}, invalid("extension_name", name, ErrExtensionName)
	case definition == "":
		return Extension{}, invalid("definition", "", ErrEmptyField)
	}
	if _, err := ParseScope(string(scope)); err != nil {
		return Extension{}, err
	}
	return Extension{
		table:      table,
		column:     column,
		name:       name,
		definition: definition,
		scope:      scope,
	}, nil
}

func (e Extension) TableName() sql.NullString  { return e.table }
func (e Extension) ColumnName() sql.NullString { return e.column }
func (e Extension) Name() string               { return e.name }
func (e Extension) Definition() string         { return e.definition }
func (e Extension) Scope() Scope               { return e.scope }

// Author returns the author prefix of the extension name, e.g. "gpkg"
// for "gpkg_rtree_index".
func (e Extension) Author() string {
	author, _, _ := strings.Cut(e.name, "_")
	return author
}

// Key returns the (table, column, name) triple that identifies e.
func (e Extension) Key() ExtensionKey {
	return ExtensionKey{Table: e.table, Column: e.column, Name: e.name}
}

// Equals compares all five fields. A null table or column only equals null.
func (e Extension) Equals(table, column sql.NullString, name, definition string, scope Scope) bool {
	return e.table == normalizeNull(table) &&
		e.column == normalizeNull(column) &&
		e.name == name &&
		e.definition == definition &&
		e.scope == scope
}

// ExtensionStore persists extension entries. Implementations need not be
// safe for concurrent use.
type ExtensionStore interface {
	Lookup(key ExtensionKey) (Extension, bool, error)
	Insert(e Extension) error
	List() ([]Extension, error)
}

// MemoryExtensionStore keeps entries in insertion order in memory.
type MemoryExtensionStore struct {
	entries map[ExtensionKey]Extension
	order   []ExtensionKey
}

func NewMemoryExtensionStore() *MemoryExtensionStore {
	return &MemoryExtensionStore{entries: map[ExtensionKey]Extension{}}
}

func (s *MemoryExtensionStore) Lookup(key ExtensionKey) (Extension, bool, error) {
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryExtensionStore) Insert(e Extension) error {
	key := e.Key()
	if _, ok := s.entries[key]; !ok {
		s.order = append(s.order, key)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryExtensionStore) List() ([]Extension, error) {
	out := make([]Extension, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k])
	}
	return out, nil
}

// ExtensionRegistry records which extensions apply to which table and
// column. Registration is a lookup followed by an insert and is not
// synchronized: callers sharing a store must serialize access.
type ExtensionRegistry struct {
	store ExtensionStore
}

// NewExtensionRegistry returns a registry backed by store, or by a new
// in-memory store if store is nil.
func NewExtensionRegistry(store ExtensionStore) *ExtensionRegistry {
	if store == nil {
		store = NewMemoryExtensionStore()
	}
	return &ExtensionRegistry{store: store}
}

// AddExtension validates and registers an extension. Registering a key
// that already exists returns the stored entry when definition and scope
// match; when they differ the stored entry is returned together with
// ErrExtensionConflict and the store is left unchanged.
func (r *ExtensionRegistry) AddExtension(table, column sql.NullString, name, definition string, scope Scope) (Extension, error) {
	ext, err := NewExtension(table, column, name, definition, scope)
	if err != nil {
		return Extension{}, err
	}

	existing, ok, err := r.store.Lookup(ext.Key())
	if err != nil {
		return Extension{}, err
	}
	if ok {
		if existing.definition != ext.definition || existing.scope != ext.scope {
			log.Warn("conflicting extension registration",
				zap.String("extension", name),
				zap.String("table", ext.table.String),
				zap.String("column", ext.column.String),
				zap.String("definition", existing.definition),
				zap.String("rejected_definition", ext.definition))
			return existing, invalid("extension", name, ErrExtensionConflict)
		}
		log.Debug("extension already registered", zap.String("extension", name), zap.String("table", ext.table.String))
		return existing, nil
	}

	if err := r.store.Insert(ext); err != nil {
		return Extension{}, err
	}
	log.Debug("registered extension",
		zap.String("extension", name),
		zap.String("table", ext.table.String),
		zap.String("column", ext.column.String),
		zap.String("scope", string(scope)))
	return ext, nil
}

// Has reports whether an extension is registered for the given key.
func (r *ExtensionRegistry) Has(table, column sql.NullString, name string) (bool, error) {
	_, ok, err := r.store.Lookup(newExtensionKey(table, column, name))
	return ok, err
}

// Get returns the extension registered for the given key.
func (r *ExtensionRegistry) Get(table, column sql.NullString, name string) (Extension, bool, error) {
	return r.store.Lookup(newExtensionKey(table, column, name))
}

// Extensions returns every registered extension.
func (r *ExtensionRegistry) Extensions() ([]Extension, error) {
	return r.store.List()
}

// TableExtensions returns the extensions registered for table, including
// column-level ones.
func (r *ExtensionRegistry) TableExtensions(table string) ([]Extension, error) {
	all, err := r.store.List()
	if err != nil {
		return nil, err
	}
	var out []Extension
	for _, e := range all {
		if e.table.Valid && e.table.String == table {
			out = append(out, e)
		}
	}
	return out, nil
}
