// Package storage implements the slotted-page layout: a fixed 4096-byte
// buffer that packs variable-length records and a slot directory into one
// page, the way the teacher's disk manager packed fixed-header pages, but
// with the two-field header and signed slide algorithm this engine's heap
// file actually needs.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/dshills/heapdb/internal/errors"
)

// PageSize is the fixed size of every page on disk. Variable page sizes are
// out of scope for this engine.
const PageSize = 4096

// headerSize is the size, in bytes, of the num_records/end_free header that
// precedes the slot directory.
const headerSize = 4

// slotSize is the size, in bytes, of one slot directory entry: a uint16
// length followed by a uint16 byte offset.
const slotSize = 4

// BlockID identifies a page within a HeapFile. Block ids are 1-based and
// monotonically assigned; zero is never a valid block.
type BlockID uint32

// RecordID identifies a slot within a page. Record ids are 1-based and are
// never reused, even after a tombstoning Del.
type RecordID uint16

// SlottedPage is an in-memory view over one page buffer. It owns the buffer
// for the duration of the caller's borrow; callers hand the buffer back to
// the block store explicitly once they are done mutating it.
type SlottedPage struct {
	blockID BlockID
	buf     [PageSize]byte
}

// NewSlottedPage wraps buf as block blockID. When isNew is true the page is
// reinitialized to empty; otherwise the header is taken from buf as-is.
func NewSlottedPage(buf [PageSize]byte, blockID BlockID, isNew bool) *SlottedPage {
	sp := &SlottedPage{blockID: blockID, buf: buf}
	if isNew {
		sp.setNumRecords(0)
		sp.setEndFree(PageSize - 1)
	}
	return sp
}

// BlockID returns the block this page was constructed for.
func (sp *SlottedPage) BlockID() BlockID { return sp.blockID }

// Bytes returns the page's raw buffer, ready to hand to a block store.
func (sp *SlottedPage) Bytes() [PageSize]byte { return sp.buf }

func (sp *SlottedPage) numRecords() int {
	return int(binary.LittleEndian.Uint16(sp.buf[0:2]))
}

func (sp *SlottedPage) setNumRecords(n int) {
	binary.LittleEndian.PutUint16(sp.buf[0:2], uint16(n)) //nolint:gosec // bounded by slot directory capacity
}

func (sp *SlottedPage) endFree() int {
	return int(binary.LittleEndian.Uint16(sp.buf[2:4]))
}

func (sp *SlottedPage) setEndFree(v int) {
	binary.LittleEndian.PutUint16(sp.buf[2:4], uint16(v)) //nolint:gosec // v is always a valid page offset
}

// slotOffset returns the byte offset of slot id's directory entry.
func slotOffset(id RecordID) int {
	return headerSize * int(id)
}

func (sp *SlottedPage) slot(id RecordID) (size, loc int) {
	off := slotOffset(id)
	size = int(binary.LittleEndian.Uint16(sp.buf[off : off+2]))
	loc = int(binary.LittleEndian.Uint16(sp.buf[off+2 : off+4]))
	return size, loc
}

func (sp *SlottedPage) setSlot(id RecordID, size, loc int) {
	off := slotOffset(id)
	binary.LittleEndian.PutUint16(sp.buf[off:off+2], uint16(size))  //nolint:gosec // size is bounded by PageSize
	binary.LittleEndian.PutUint16(sp.buf[off+2:off+4], uint16(loc)) //nolint:gosec // loc is bounded by PageSize
}

// hasRoom reports whether sz more payload bytes (plus one new slot entry)
// still fit in the page.
func (sp *SlottedPage) hasRoom(sz int) bool {
	// Free bytes run from the end of the directory, 4*(num_records+1), up to
	// end_free inclusive; one more slot entry must come out of them too.
	available := sp.endFree() + 1 - slotSize*(sp.numRecords()+2)
	return sz <= available
}

// Add appends payload as a new record and returns its id. It fails with a
// NoRoom error, leaving the page unchanged, when there is not enough free
// space for the payload plus one new slot entry.
func (sp *SlottedPage) Add(payload []byte) (RecordID, error) {
	if !sp.hasRoom(len(payload)) {
		return 0, errors.New(errors.NoRoom, "page has no room for new record")
	}
	id := RecordID(sp.numRecords() + 1)
	size := len(payload)
	loc := sp.endFree() - size + 1

	sp.setNumRecords(int(id))
	sp.setEndFree(loc - 1)
	sp.setSlot(id, size, loc)
	copy(sp.buf[loc:loc+size], payload)

	assertInvariant(slotSize*(sp.numRecords()+1) <= sp.endFree()+1,
		"slot directory (%d bytes) overlaps payload region (end_free=%d)",
		slotSize*(sp.numRecords()+1), sp.endFree())

	return id, nil
}

// Get returns a copy of the bytes stored for id. ok is false if id has never
// been assigned or has been tombstoned by Del.
func (sp *SlottedPage) Get(id RecordID) (data []byte, ok bool) {
	if int(id) < 1 || int(id) > sp.numRecords() {
		return nil, false
	}
	size, loc := sp.slot(id)
	if loc == 0 {
		return nil, false
	}
	out := make([]byte, size)
	copy(out, sp.buf[loc:loc+size])
	return out, true
}

// Put replaces the bytes stored for id with newData, compacting the page as
// needed so the payload region stays contiguous. It fails with NoRoom, and
// leaves the page unchanged, if growing the record does not fit.
func (sp *SlottedPage) Put(id RecordID, newData []byte) error {
	size, loc := sp.slot(id)
	if loc == 0 {
		return errors.Newf(errors.NotFound, "no such record %d", id)
	}
	newSize := len(newData)
	delta := newSize - size

	if delta > 0 {
		if !sp.hasRoom(delta) {
			return errors.New(errors.NoRoom, "page has no room to grow record")
		}
		sp.slide(loc, loc-delta)
		copy(sp.buf[loc-delta:loc-delta+newSize], newData)
	} else {
		copy(sp.buf[loc:loc+newSize], newData)
		sp.slide(loc+newSize, loc+size)
	}

	_, newLoc := sp.slot(id)
	sp.setSlot(id, newSize, newLoc)
	return nil
}

// Del tombstones id: its slot is kept (so ids are never reused) but its
// size and location are zeroed, and its payload space is reclaimed.
func (sp *SlottedPage) Del(id RecordID) {
	size, loc := sp.slot(id)
	if loc == 0 {
		return
	}
	sp.slide(loc, loc+size)
	sp.setSlot(id, 0, 0)
}

// IDs returns every live (non-tombstoned) record id on the page, in
// ascending order.
func (sp *SlottedPage) IDs() []RecordID {
	n := sp.numRecords()
	ids := make([]RecordID, 0, n)
	for r := 1; r <= n; r++ {
		_, loc := sp.slot(RecordID(r))
		if loc != 0 {
			ids = append(ids, RecordID(r))
		}
	}
	return ids
}

// slide shifts the payload bytes in [end_free+1, start-1] by shift = end -
// start, then fixes up every slot whose loc lies at or below start, then
// adjusts end_free by the same shift. shift is negative when growing a
// record (the payload region moves toward lower offsets to make room) and
// positive when shrinking or deleting one.
func (sp *SlottedPage) slide(start, end int) {
	shift := end - start
	if shift == 0 {
		return
	}

	ef := sp.endFree()
	regionStart := ef + 1
	regionLen := start - regionStart
	if regionLen > 0 {
		region := make([]byte, regionLen)
		copy(region, sp.buf[regionStart:regionStart+regionLen])
		copy(sp.buf[regionStart+shift:regionStart+shift+regionLen], region)
	}

	for _, id := range sp.IDs() {
		size, loc := sp.slot(id)
		if loc <= start {
			sp.setSlot(id, size, loc+shift)
		}
	}

	sp.setEndFree(ef + shift)
}

// assertInvariant panics with a formatted message when cond is false. It
// marks internal consistency checks that a correct caller can never trip —
// a page whose directory and payload regions overlap despite a passing
// hasRoom check is a programmer error, not a recoverable NoRoom.
func assertInvariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("storage: invariant violated: "+format, args...))
	}
}
