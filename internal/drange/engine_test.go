package drange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qxcapital/drbot/internal/session"
)

func TestSignalAt(t *testing.T) {
	e := NewEngine()
	e.SetBars(append(rdrFormation(17),
		bar(17, 10, 30, 4499.5, 4502, 4499, 4501)))

	c, ok := e.SignalAt(time.Date(2026, 8, 17, 10, 30, 0, 0, session.Eastern))
	require.True(t, ok)
	assert.Equal(t, Bullish, c.Bias)
	assert.Equal(t, session.RDR, c.Session)

	_, ok = e.SignalAt(time.Date(2026, 8, 17, 10, 35, 0, 0, session.Eastern))
	assert.False(t, ok)
}
