package lww

import (
	"encoding/json"
	"testing"

	"github.com/closetapp/closet-sync/internal/syncwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, id string, clock int64, name string) *syncwire.Record {
	t.Helper()
	var r syncwire.Record
	data, err := json.Marshal(map[string]any{"id": id, "createdAt": 1, "updatedAt": clock, "name": name})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &r))
	return &r
}

func TestMerge_NoExistingAcceptsUnconditionally(t *testing.T) {
	d := Merge(nil, rec(t, "a", 10, "x"), true)
	assert.True(t, d.Accept)
	assert.False(t, d.Conflict)
}

func TestMerge_NewerIncomingWins(t *testing.T) {
	existing := rec(t, "a", 10, "old")
	incoming := rec(t, "a", 11, "new")

	for _, serverIsIncoming := range []bool{true, false} {
		d := Merge(existing, incoming, serverIsIncoming)
		assert.True(t, d.Accept)
		assert.False(t, d.Conflict)
	}
}

func TestMerge_OlderIncomingLoses(t *testing.T) {
	existing := rec(t, "a", 10, "current")
	incoming := rec(t, "a", 9, "stale")

	for _, serverIsIncoming := range []bool{true, false} {
		d := Merge(existing, incoming, serverIsIncoming)
		assert.False(t, d.Accept)
		assert.False(t, d.Conflict)
	}
}

func TestMerge_EqualClockDifferentContentIsConflict(t *testing.T) {
	existing := rec(t, "a", 10, "device1")
	incoming := rec(t, "a", 10, "device2")

	// Pull path: the pulled/server copy wins the tie.
	d := Merge(existing, incoming, true)
	assert.True(t, d.Accept)
	assert.True(t, d.Conflict)

	// Push path: the stored/server copy wins the tie.
	d = Merge(existing, incoming, false)
	assert.False(t, d.Accept)
	assert.True(t, d.Conflict)
}

func TestMerge_EqualClockSameContentIsNotAConflict(t *testing.T) {
	existing := rec(t, "a", 10, "same")
	incoming := rec(t, "a", 10, "same")

	d := Merge(existing, incoming, true)
	assert.False(t, d.Conflict)

	d = Merge(existing, incoming, false)
	assert.False(t, d.Conflict)
	assert.False(t, d.Accept)
}

func TestMerge_TombstoneWinsByClock(t *testing.T) {
	existing := rec(t, "a", 10, "live")
	tomb := rec(t, "a", 11, "live")
	tomb.SetDeleted(11)

	d := Merge(existing, tomb, true)
	assert.True(t, d.Accept)

	// A stale update arriving after the tombstone does not resurrect it.
	d = Merge(tomb, rec(t, "a", 10, "resurrect"), false)
	assert.False(t, d.Accept)
}

func TestMerge_ClockFallbackForCreatedOnlyRecords(t *testing.T) {
	var existing, incoming syncwire.Record
	require.NoError(t, json.Unmarshal([]byte(`{"id":"ti","createdAt":5}`), &existing))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"ti","createdAt":7}`), &incoming))

	d := Merge(&existing, &incoming, false)
	assert.True(t, d.Accept)
}
