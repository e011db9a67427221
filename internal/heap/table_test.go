package heap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/heapdb/internal/errors"
	"github.com/dshills/heapdb/internal/storage"
)

func tempDataDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "heapdb_heap_test_")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func abSchema() Schema {
	return Schema{{Name: "a", Type: INT}, {Name: "b", Type: TEXT}}
}

// S1 — create/drop.
func TestCreateDrop(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)

	require.NoError(t, table.Create())
	require.NoError(t, table.Drop())

	// Second create on the same name succeeds.
	table2 := NewTable("t", abSchema(), dir)
	require.NoError(t, table2.Create())
	require.NoError(t, table2.Drop())
}

// S2 — insert/select/project.
func TestInsertSelectProject(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)
	defer table.Drop()

	_, err := table.Insert(Row{"a": int32(12), "b": "Hello!"})
	require.NoError(t, err)

	handles, err := table.Select(nil)
	require.NoError(t, err)
	require.Len(t, handles, 1)

	row, err := table.Project(handles[0])
	require.NoError(t, err)
	assert.Equal(t, Row{"a": int32(12), "b": "Hello!"}, row)

	partial, err := table.Project(handles[0], "a")
	require.NoError(t, err)
	assert.Equal(t, Row{"a": int32(12)}, partial)

	_, err = table.Project(handles[0], "c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.UnknownColumn))
}

// S3 — overflow triggers a new block.
func TestOverflowTriggersNewBlock(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", Schema{{Name: "b", Type: TEXT}}, dir)
	defer table.Drop()

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = 'x'
	}

	// Each row marshals to 1002 bytes (2-byte TEXT length + 1000); four fit
	// on one 4096-byte page with 68 bytes to spare, so the fifth is what
	// actually overflows onto a new block.
	for i := 0; i < 5; i++ {
		_, err := table.Insert(Row{"b": string(payload)})
		require.NoErrorf(t, err, "insert %d", i)
	}

	ids := table.file.BlockIDs()
	assert.Equal(t, []storage.BlockID{1, 2}, ids)

	handles, err := table.Select(nil)
	require.NoError(t, err)
	assert.Len(t, handles, 5)
}

// S4 — delete creates a hole; ids are never reused.
func TestDeleteCreatesHole(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)
	defer table.Drop()

	h1, err := table.Insert(Row{"a": int32(1), "b": "one"})
	require.NoError(t, err)
	h2, err := table.Insert(Row{"a": int32(2), "b": "two"})
	require.NoError(t, err)
	h3, err := table.Insert(Row{"a": int32(3), "b": "three"})
	require.NoError(t, err)

	require.NoError(t, table.Del(h2))

	handles, err := table.Select(nil)
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.ElementsMatch(t, []Handle{h1, h3}, handles)

	row, err := table.Project(h3)
	require.NoError(t, err)
	assert.Equal(t, Row{"a": int32(3), "b": "three"}, row)

	h4, err := table.Insert(Row{"a": int32(4), "b": "four"})
	require.NoError(t, err)
	assert.NotEqual(t, h2, h4)
	assert.Equal(t, storage.RecordID(4), h4.RecordID)
}

// S6 — missing column on insert.
func TestInsertMissingColumn(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)
	defer table.Drop()

	_, err := table.Insert(Row{"a": int32(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.MissingColumn))
}

// S7 — update grows past NoRoom and moves to a new handle.
func TestUpdateMovesOnNoRoom(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", Schema{{Name: "b", Type: TEXT}}, dir)
	defer table.Drop()

	require.NoError(t, table.Create())

	// Fill block 1 to capacity with small rows; Insert allocates a new
	// block transparently on overflow, so stop as soon as a handle lands
	// on block 2 and use the last row that still fit on block 1.
	var handles []Handle
	for {
		h, err := table.Insert(Row{"b": "x"})
		require.NoError(t, err)
		if h.BlockID != 1 {
			break
		}
		handles = append(handles, h)
	}
	require.NotEmpty(t, handles)
	target := handles[len(handles)-1]

	huge := make([]byte, 2000)
	for i := range huge {
		huge[i] = 'y'
	}

	newHandle, moved, err := table.Update(target, Row{"b": string(huge)})
	require.NoError(t, err)
	assert.True(t, moved)
	assert.NotEqual(t, target, newHandle)

	row, err := table.Project(newHandle)
	require.NoError(t, err)
	assert.Equal(t, string(huge), row["b"])

	// The old handle is tombstoned.
	selected, err := table.Select(nil)
	require.NoError(t, err)
	for _, h := range selected {
		assert.NotEqual(t, target, h)
	}
}

func TestUpdateInPlace(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", Schema{{Name: "b", Type: TEXT}}, dir)
	defer table.Drop()

	h1, err := table.Insert(Row{"b": "hi"})
	require.NoError(t, err)
	h2, err := table.Insert(Row{"b": "x"})
	require.NoError(t, err)

	updated, moved, err := table.Update(h1, Row{"b": "much longer value"})
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, h1, updated)

	row1, err := table.Project(h1)
	require.NoError(t, err)
	assert.Equal(t, "much longer value", row1["b"])

	row2, err := table.Project(h2)
	require.NoError(t, err)
	assert.Equal(t, "x", row2["b"])
}

// S8 — select with predicate.
func TestSelectWithPredicate(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)
	defer table.Drop()

	_, err := table.Insert(Row{"a": int32(1), "b": "one"})
	require.NoError(t, err)
	target, err := table.Insert(Row{"a": int32(2), "b": "two"})
	require.NoError(t, err)
	_, err = table.Insert(Row{"a": int32(3), "b": "three"})
	require.NoError(t, err)

	matches, err := table.Select(Row{"a": int32(2)})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, target, matches[0])
}

func TestCreateIfNotExists(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)
	defer table.Drop()

	require.NoError(t, table.CreateIfNotExists())
	require.NoError(t, table.Close())

	// Second call finds the existing file and opens it instead of failing.
	table2 := NewTable("t", abSchema(), dir)
	require.NoError(t, table2.CreateIfNotExists())
}

// Regression test: a reopened table must recover the true last block id,
// not one past it, so a post-reopen insert lands on the existing block
// instead of faulting on a phantom trailing one.
func TestReopenThenInsertAndSelect(t *testing.T) {
	dir := tempDataDir(t)
	schema := abSchema()

	table := NewTable("t", schema, dir)
	defer table.Drop()

	h1, err := table.Insert(Row{"a": int32(1), "b": "one"})
	require.NoError(t, err)
	require.NoError(t, table.Close())

	reopened := NewTable("t", schema, dir)
	require.NoError(t, reopened.Open())

	require.Equal(t, storage.BlockID(1), reopened.file.GetLastBlockID())

	h2, err := reopened.Insert(Row{"a": int32(2), "b": "two"})
	require.NoError(t, err)
	assert.Equal(t, storage.BlockID(1), h2.BlockID)

	handles, err := reopened.Select(nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Handle{h1, h2}, handles)

	row1, err := reopened.Project(h1)
	require.NoError(t, err)
	assert.Equal(t, Row{"a": int32(1), "b": "one"}, row1)
}

func TestProjectUnknownColumn(t *testing.T) {
	dir := tempDataDir(t)
	table := NewTable("t", abSchema(), dir)
	defer table.Drop()

	h, err := table.Insert(Row{"a": int32(1), "b": "one"})
	require.NoError(t, err)

	_, err = table.Project(h, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.UnknownColumn))
}

