package logbuf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/servinel/daemon/internal/logbuf"
)

func push(b *logbuf.LogBuffer, n int) {
	for i := 0; i < n; i++ {
		b.Push(logbuf.LogEntry{Timestamp: int64(i), Line: string(rune('a' + i%26))})
	}
}

func TestLogBuffer_LenNeverExceedsCapacity(t *testing.T) {
	b := logbuf.New()
	push(b, 2500)
	assert.Equal(t, logbuf.Capacity, b.Len())
}

func TestLogBuffer_RetainsLastNInOrder(t *testing.T) {
	b := logbuf.New()
	push(b, 2500)
	all := b.All()
	assert.Len(t, all, logbuf.Capacity)
	// The last pushed timestamp is 2499; the oldest retained must be 1500.
	assert.Equal(t, int64(1500), all[0].Timestamp)
	assert.Equal(t, int64(2499), all[len(all)-1].Timestamp)
}

func TestLogBuffer_TailBoundaries(t *testing.T) {
	b := logbuf.New()
	push(b, 3)

	assert.Empty(t, b.Tail(0))
	assert.Len(t, b.Tail(100), 3)
	tail2 := b.Tail(2)
	assert.Len(t, tail2, 2)
	assert.Equal(t, int64(1), tail2[0].Timestamp)
	assert.Equal(t, int64(2), tail2[1].Timestamp)
}

func TestLogBuffer_Clear(t *testing.T) {
	b := logbuf.New()
	push(b, 10)
	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.All())
}

func TestLogBuffer_UnderCapacityPreservesOrder(t *testing.T) {
	b := logbuf.New()
	push(b, 5)
	all := b.All()
	for i, e := range all {
		assert.Equal(t, int64(i), e.Timestamp)
	}
}
