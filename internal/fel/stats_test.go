package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshotAccumulates(t *testing.T) {
	var s Stats
	s.recordWrite(100)
	s.recordWrite(50)
	s.recordRead(10)
	s.recordExecute()
	s.recordError()

	snap := s.Snapshot()
	assert.EqualValues(t, 150, snap.BytesWritten)
	assert.EqualValues(t, 2, snap.WriteCount)
	assert.EqualValues(t, 10, snap.BytesRead)
	assert.EqualValues(t, 1, snap.ReadCount)
	assert.EqualValues(t, 1, snap.ExecuteCount)
	assert.EqualValues(t, 1, snap.ErrorCount)
	assert.False(t, snap.LastOpAt.IsZero())
}

func TestSessionStatsDelegates(t *testing.T) {
	s := &Session{}
	s.stats.recordWrite(42)
	assert.EqualValues(t, 42, s.Stats().BytesWritten)
}
