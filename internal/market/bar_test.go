package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(min int) time.Time {
	return time.Date(2026, 8, 17, 10, min, 0, 0, time.UTC)
}

func TestClean(t *testing.T) {
	bars := []Bar{
		{Start: at(0), Close: 1},
		{Start: at(5), Close: 2},
		{Start: at(5), Close: 3}, // repeated trailing bar from the source
		{Start: at(0), Close: 4}, // out of order
		{Start: at(10), Close: 5},
	}

	got := Clean(bars)
	assert.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Close)
	assert.Equal(t, 2.0, got[1].Close)
	assert.Equal(t, 5.0, got[2].Close)
}

func TestTail(t *testing.T) {
	bars := []Bar{{Start: at(0)}, {Start: at(5)}, {Start: at(10)}}

	assert.Len(t, Tail(bars, 2), 2)
	assert.Equal(t, at(5), Tail(bars, 2)[0].Start)
	assert.Len(t, Tail(bars, 5), 3)
}

func TestLastClose(t *testing.T) {
	_, ok := LastClose(nil)
	assert.False(t, ok)

	c, ok := LastClose([]Bar{{Close: 4500}, {Close: 4501.25}})
	assert.True(t, ok)
	assert.Equal(t, 4501.25, c)
}

func TestBody(t *testing.T) {
	h, l := Bar{Open: 4500, Close: 4495}.Body()
	assert.Equal(t, 4500.0, h)
	assert.Equal(t, 4495.0, l)

	h, l = Bar{Open: 4495, Close: 4500}.Body()
	assert.Equal(t, 4500.0, h)
	assert.Equal(t, 4495.0, l)
}
