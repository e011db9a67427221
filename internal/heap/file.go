package heap

import (
	"path/filepath"

	"github.com/dshills/heapdb/internal/blockstore"
	"github.com/dshills/heapdb/internal/errors"
	"github.com/dshills/heapdb/internal/log"
	"github.com/dshills/heapdb/internal/storage"
)

// File is a named, persistent sequence of fixed-size pages backed by a
// blockstore.Store. It allocates pages by appending; it never reclaims a
// dropped page's block id. A File is not safe for concurrent use.
type File struct {
	name       string
	dbFilename string
	store      *blockstore.Store
	last       storage.BlockID
	closed     bool
	log        log.Logger
}

// NewFile constructs a File for relation name rooted under dataDir. The
// file is not opened until Create, Open, or CreateIfNotExists is called.
func NewFile(name, dataDir string) *File {
	return &File{
		name:       name,
		dbFilename: filepath.Join(dataDir, name+".db"),
		closed:     true,
		log:        log.Default(),
	}
}

// SetLogger overrides the logger used for block allocation events.
func (f *File) SetLogger(l log.Logger) { f.log = l }

// Create opens the backing store exclusively and allocates block 1 so that
// last >= 1 holds for the lifetime of the file. It fails if the backing
// file already exists.
func (f *File) Create() error {
	store, err := blockstore.Open(f.dbFilename, blockstore.ModeCreateExclusive)
	if err != nil {
		return err
	}
	f.store = store
	f.closed = false
	f.last = 0

	page, err := f.GetNew()
	if err != nil {
		return err
	}
	return f.Put(page)
}

// Open opens an existing backing store and recovers last from its stat.
func (f *File) Open() error {
	store, err := blockstore.Open(f.dbFilename, blockstore.ModeOpenExisting)
	if err != nil {
		return err
	}
	count, err := store.Stat()
	if err != nil {
		store.Close()
		return err
	}
	f.store = store
	f.last = storage.BlockID(count)
	f.closed = false
	return nil
}

// Close closes the backing store.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	err := f.store.Close()
	f.closed = true
	return err
}

// Drop closes the file, if open, and removes its backing file from disk.
func (f *File) Drop() error {
	if err := f.Close(); err != nil {
		return err
	}
	return blockstore.Remove(f.dbFilename)
}

// GetNew allocates a fresh, zero-filled page at block id last+1, round-trips
// it through the block store so the store owns the bytes, and returns it.
func (f *File) GetNew() (*storage.SlottedPage, error) {
	id := f.last + 1
	var zero [storage.PageSize]byte
	page := storage.NewSlottedPage(zero, id, true)

	if err := f.store.Put(uint32(id), page.Bytes()); err != nil {
		return nil, err
	}
	stored, err := f.store.Get(uint32(id))
	if err != nil {
		return nil, err
	}
	f.last = id
	f.log.Debug("heap file allocated block", "relation", f.name, "block_id", id)
	return storage.NewSlottedPage(stored, id, false), nil
}

// Get reads the page stored at blockID.
func (f *File) Get(blockID storage.BlockID) (*storage.SlottedPage, error) {
	data, err := f.store.Get(uint32(blockID))
	if err != nil {
		return nil, err
	}
	return storage.NewSlottedPage(data, blockID, false), nil
}

// Put writes page back to its own block id.
func (f *File) Put(page *storage.SlottedPage) error {
	return f.store.Put(uint32(page.BlockID()), page.Bytes())
}

// BlockIDs returns every allocated block id, 1..last, inclusive.
func (f *File) BlockIDs() []storage.BlockID {
	ids := make([]storage.BlockID, 0, f.last)
	for id := storage.BlockID(1); id <= f.last; id++ {
		ids = append(ids, id)
	}
	return ids
}

// GetLastBlockID returns the largest allocated block id.
func (f *File) GetLastBlockID() storage.BlockID { return f.last }

// ensureOpen opens the file with create-if-missing semantics; Table.Insert
// uses it to auto-open on insert.
func (f *File) ensureOpen() error {
	if !f.closed {
		return nil
	}
	if err := f.Open(); err != nil {
		if errors.IsNotFound(err) {
			return f.Create()
		}
		return err
	}
	return nil
}
