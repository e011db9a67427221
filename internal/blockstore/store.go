// Package blockstore provides the durable, append-addressable block file that
// the storage engine's upper layers treat as an external collaborator: a
// store of fixed-size blocks keyed by a 32-bit block number, with atomic
// full-block put/get and a fast record-count stat.
package blockstore

import (
	"fmt"
	"os"

	"github.com/dshills/heapdb/internal/errors"
	"github.com/dshills/heapdb/internal/storage"
)

// BlockSize is the fixed width of every block the store holds. It mirrors
// storage.PageSize: the store has no notion of what is inside a block, but
// callers always hand it whole pages.
const BlockSize = storage.PageSize

// OpenMode selects how Open behaves when the backing file does or does not
// already exist.
type OpenMode int

const (
	// ModeCreateExclusive fails if the backing file already exists.
	ModeCreateExclusive OpenMode = iota
	// ModeOpenExisting fails if the backing file does not already exist.
	ModeOpenExisting
)

// Store is a single-threaded, fixed-block-size file. Block numbers are
// 1-based and map directly to file offset (key-1)*BlockSize, so block 1
// sits at the start of the file and Stat's block count always equals the
// highest key ever written — there is no block 0 and no reserved hole.
type Store struct {
	file *os.File
	path string
}

// Open opens or creates the block file at path according to mode.
func Open(path string, mode OpenMode) (*Store, error) {
	switch mode {
	case ModeCreateExclusive:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return nil, errors.Newf(errors.IOError, "block store %s already exists", path).WithDetail(err.Error())
			}
			return nil, errors.Newf(errors.IOError, "create block store %s", path).WithDetail(err.Error())
		}
		return &Store{file: f, path: path}, nil
	case ModeOpenExisting:
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Newf(errors.NotFound, "block store %s does not exist", path)
			}
			return nil, errors.Newf(errors.IOError, "stat block store %s", path).WithDetail(err.Error())
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			return nil, errors.Newf(errors.IOError, "open block store %s", path).WithDetail(err.Error())
		}
		return &Store{file: f, path: path}, nil
	default:
		return nil, fmt.Errorf("blockstore: unknown open mode %d", mode)
	}
}

// Get reads the full block stored under key.
func (s *Store) Get(key uint32) ([BlockSize]byte, error) {
	var buf [BlockSize]byte
	offset := int64(key-1) * BlockSize
	if _, err := s.file.ReadAt(buf[:], offset); err != nil {
		return buf, errors.Newf(errors.IOError, "read block %d", key).WithDetail(err.Error())
	}
	return buf, nil
}

// Put writes data as the full block stored under key, extending the file if
// key has not been written before.
func (s *Store) Put(key uint32, data [BlockSize]byte) error {
	offset := int64(key-1) * BlockSize
	if _, err := s.file.WriteAt(data[:], offset); err != nil {
		return errors.Newf(errors.IOError, "write block %d", key).WithDetail(err.Error())
	}
	return nil
}

// Stat returns the number of whole blocks currently present in the file,
// equivalently the highest block key ever written (blocks are 1-based and
// contiguous from key 1, so file size alone determines this).
func (s *Store) Stat() (uint32, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, errors.Newf(errors.IOError, "stat block store %s", s.path).WithDetail(err.Error())
	}
	return uint32(info.Size() / BlockSize), nil //nolint:gosec // file sizes here are bounded by disk, not adversarial input
}

// Close closes the backing file.
func (s *Store) Close() error {
	if err := s.file.Sync(); err != nil {
		return errors.Newf(errors.IOError, "sync block store %s", s.path).WithDetail(err.Error())
	}
	return s.file.Close()
}

// Remove deletes the backing file at path from the filesystem. It does not
// close any Store open on that file; a file that is already gone is not an
// error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Newf(errors.IOError, "remove block store %s", path).WithDetail(err.Error())
	}
	return nil
}
