// Package heap implements the relation layer of the storage engine: a typed
// table over a heap file, marshalling rows into page records and exposing
// insert/select/project/delete/update on the resulting handles.
package heap

import (
	"github.com/dshills/heapdb/internal/errors"
	"github.com/dshills/heapdb/internal/log"
	"github.com/dshills/heapdb/internal/storage"
)

// Handle is the external name of a row: the pair of the block it lives on
// and its record id within that block's slot directory. Handles are stable
// across insertions and tombstone deletions on the same page.
type Handle struct {
	BlockID  storage.BlockID
	RecordID storage.RecordID
}

// Table is a typed relation backed by one heap File. A Table is not safe
// for concurrent use.
type Table struct {
	name   string
	schema Schema
	file   *File
	log    log.Logger
}

// NewTable constructs a table named name with the given schema, rooted at
// dataDir. The table must be opened (or inserted into, which auto-opens)
// before any other operation.
func NewTable(name string, schema Schema, dataDir string) *Table {
	return &Table{
		name:   name,
		schema: schema,
		file:   NewFile(name, dataDir),
		log:    log.Default(),
	}
}

// SetLogger overrides the logger used for insert/update/overflow events.
func (t *Table) SetLogger(l log.Logger) {
	t.log = l
	t.file.SetLogger(l)
}

// Create creates the backing heap file. It fails if one already exists.
func (t *Table) Create() error { return t.file.Create() }

// CreateIfNotExists opens the table, falling back to Create only if the
// open failed because the backing file does not exist.
func (t *Table) CreateIfNotExists() error {
	if err := t.file.Open(); err != nil {
		if errors.IsNotFound(err) {
			return t.file.Create()
		}
		return err
	}
	return nil
}

// Open opens an existing backing heap file.
func (t *Table) Open() error { return t.file.Open() }

// Close releases the backing heap file.
func (t *Table) Close() error { return t.file.Close() }

// Drop closes the table and removes its backing file.
func (t *Table) Drop() error { return t.file.Drop() }

// Validate builds a row in schema order from input, failing with
// MissingColumn if any declared column is absent. Extra input columns are
// silently dropped; there is no type coercion.
func (t *Table) Validate(input Row) (Row, error) {
	out := make(Row, len(t.schema))
	for _, col := range t.schema {
		v, ok := input[col.Name]
		if !ok {
			return nil, errors.Newf(errors.MissingColumn, "row is missing column %q", col.Name)
		}
		out[col.Name] = v
	}
	return out, nil
}

// Insert validates and marshals row, then appends it, auto-opening the
// table (create-if-not-exists) first.
func (t *Table) Insert(row Row) (Handle, error) {
	if err := t.file.ensureOpen(); err != nil {
		return Handle{}, err
	}
	validated, err := t.Validate(row)
	if err != nil {
		return Handle{}, err
	}
	return t.append(validated)
}

// append marshals row and writes it to the last block, allocating a new
// block on overflow and retrying exactly once.
func (t *Table) append(row Row) (Handle, error) {
	data, err := marshal(t.schema, row)
	if err != nil {
		return Handle{}, err
	}

	page, err := t.file.Get(t.file.GetLastBlockID())
	if err != nil {
		return Handle{}, err
	}

	recordID, err := page.Add(data)
	if errors.IsNoRoom(err) {
		t.log.Info("heap table overflow, allocating new block", "relation", t.name)
		page, err = t.file.GetNew()
		if err != nil {
			return Handle{}, err
		}
		recordID, err = page.Add(data)
		if err != nil {
			if errors.IsNoRoom(err) {
				return Handle{}, errors.Newf(errors.RowTooLarge, "row of %d bytes does not fit in a fresh %d-byte page", len(data), storage.PageSize)
			}
			return Handle{}, err
		}
	} else if err != nil {
		return Handle{}, err
	}

	if err := t.file.Put(page); err != nil {
		return Handle{}, err
	}
	return Handle{BlockID: page.BlockID(), RecordID: recordID}, nil
}

// Del tombstones the row named by handle.
func (t *Table) Del(handle Handle) error {
	page, err := t.file.Get(handle.BlockID)
	if err != nil {
		return err
	}
	page.Del(handle.RecordID)
	return t.file.Put(page)
}

// Update overlays newValues on top of the row named by handle and rewrites
// it. If the new row fits in place, moved is false and the same handle is
// returned. If it does not, the old slot is tombstoned and the new row is
// appended as a new row; moved is true and the returned Handle must replace
// every copy of the old one a caller is holding.
func (t *Table) Update(handle Handle, newValues Row) (updated Handle, moved bool, err error) {
	old, err := t.Project(handle)
	if err != nil {
		return Handle{}, false, err
	}
	merged := old.Clone()
	for k, v := range newValues {
		if t.schema.IndexOf(k) < 0 {
			return Handle{}, false, errors.Newf(errors.UnknownColumn, "table %q has no column %q", t.name, k)
		}
		merged[k] = v
	}

	data, err := marshal(t.schema, merged)
	if err != nil {
		return Handle{}, false, err
	}

	page, err := t.file.Get(handle.BlockID)
	if err != nil {
		return Handle{}, false, err
	}

	if putErr := page.Put(handle.RecordID, data); putErr == nil {
		if err := t.file.Put(page); err != nil {
			return Handle{}, false, err
		}
		return handle, false, nil
	} else if !errors.IsNoRoom(putErr) {
		return Handle{}, false, putErr
	}

	t.log.Info("heap table update moved row", "relation", t.name, "old_block", handle.BlockID, "old_record", handle.RecordID)
	page.Del(handle.RecordID)
	if err := t.file.Put(page); err != nil {
		return Handle{}, false, err
	}
	newHandle, err := t.append(merged)
	if err != nil {
		return Handle{}, false, err
	}
	return newHandle, true, nil
}

// Select performs a full scan, returning one Handle per live row that
// matches where: every (column, value) pair in where must equal the row's
// value for that column. A nil or empty where matches every row.
func (t *Table) Select(where Row) ([]Handle, error) {
	var handles []Handle
	for _, blockID := range t.file.BlockIDs() {
		page, err := t.file.Get(blockID)
		if err != nil {
			return nil, err
		}
		for _, recordID := range page.IDs() {
			data, ok := page.Get(recordID)
			if !ok {
				continue
			}
			if len(where) > 0 {
				row, err := unmarshal(t.schema, data)
				if err != nil {
					return nil, err
				}
				if !matches(row, where) {
					continue
				}
			}
			handles = append(handles, Handle{BlockID: blockID, RecordID: recordID})
		}
	}
	return handles, nil
}

func matches(row Row, where Row) bool {
	for col, want := range where {
		if row[col] != want {
			return false
		}
	}
	return true
}

// Project fetches and unmarshals the row named by handle. With no columns
// given, the whole row is returned; otherwise the result is restricted to
// the requested columns, failing with UnknownColumn if any name is outside
// the schema.
func (t *Table) Project(handle Handle, columns ...string) (Row, error) {
	page, err := t.file.Get(handle.BlockID)
	if err != nil {
		return nil, err
	}
	data, ok := page.Get(handle.RecordID)
	if !ok {
		return nil, errors.Newf(errors.NotFound, "no row at block %d record %d", handle.BlockID, handle.RecordID)
	}
	row, err := unmarshal(t.schema, data)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return row, nil
	}
	out := make(Row, len(columns))
	for _, col := range columns {
		if t.schema.IndexOf(col) < 0 {
			return nil, errors.Newf(errors.UnknownColumn, "table %q has no column %q", t.name, col)
		}
		out[col] = row[col]
	}
	return out, nil
}
