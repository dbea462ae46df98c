package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eastern(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 8, 17, hour, min, 0, 0, Eastern)
}

func TestActive(t *testing.T) {
	tests := []struct {
		hour, min int
		want      Name
		ok        bool
	}{
		{5, 0, ODR, true},
		{4, 0, ODR, true},
		{8, 0, "", false}, // trading end exclusive
		{10, 0, "", false},
		{10, 30, RDR, true},
		{15, 59, RDR, true},
		{16, 0, "", false},
		{21, 0, ADR, true},
		{0, 30, ADR, true}, // overnight tail
		{1, 0, "", false},
		{2, 0, "", false},
	}
	for _, tc := range tests {
		got, ok := Active(eastern(t, tc.hour, tc.min))
		assert.Equal(t, tc.ok, ok, "%02d:%02d", tc.hour, tc.min)
		if tc.ok {
			assert.Equal(t, tc.want, got, "%02d:%02d", tc.hour, tc.min)
		}
	}
}

func TestInFormationInclusiveEnds(t *testing.T) {
	assert.True(t, InFormation(RDR, eastern(t, 9, 30)))
	assert.True(t, InFormation(RDR, eastern(t, 10, 25)))
	assert.True(t, InFormation(RDR, eastern(t, 10, 0)))
	assert.False(t, InFormation(RDR, eastern(t, 9, 29)))
	assert.False(t, InFormation(RDR, eastern(t, 10, 26)))
}

func TestAfterFormation(t *testing.T) {
	assert.False(t, AfterFormation(RDR, eastern(t, 10, 25)))
	assert.True(t, AfterFormation(RDR, eastern(t, 10, 26)))
	assert.True(t, AfterFormation(RDR, eastern(t, 15, 0)))

	// ADR's after-midnight trading tail counts as post-formation.
	assert.True(t, AfterFormation(ADR, eastern(t, 0, 30)))
	assert.True(t, AfterFormation(ADR, eastern(t, 21, 0)))
	assert.False(t, AfterFormation(ADR, eastern(t, 19, 45)))
}

func TestFormationDate(t *testing.T) {
	// A timestamp in ADR's after-midnight tail belongs to the prior day.
	assert.Equal(t, Date("2026-08-16"), FormationDate(ADR, eastern(t, 0, 30)))
	assert.Equal(t, Date("2026-08-17"), FormationDate(ADR, eastern(t, 21, 0)))

	// Day sessions never shift.
	assert.Equal(t, Date("2026-08-17"), FormationDate(RDR, eastern(t, 0, 30)))
	assert.Equal(t, Date("2026-08-17"), FormationDate(ODR, eastern(t, 5, 0)))
}

func TestTradingBounds(t *testing.T) {
	d := Date("2026-08-17")

	start, end := TradingBounds(RDR, d)
	assert.Equal(t, eastern(t, 10, 30), start)
	assert.Equal(t, eastern(t, 16, 0), end)

	// ADR ends on the next calendar day.
	start, end = TradingBounds(ADR, d)
	assert.Equal(t, eastern(t, 20, 30), start)
	assert.Equal(t, time.Date(2026, 8, 18, 1, 0, 0, 0, Eastern), end)
}

func TestFormationBounds(t *testing.T) {
	start, end := FormationBounds(ODR, Date("2026-08-17"))
	assert.Equal(t, eastern(t, 3, 0), start)
	assert.Equal(t, eastern(t, 3, 55), end)
}

func TestDateArithmetic(t *testing.T) {
	d := DateOf(eastern(t, 12, 0))
	require.Equal(t, Date("2026-08-17"), d)
	assert.Equal(t, Date("2026-08-18"), d.AddDays(1))
	assert.Equal(t, Date("2026-08-16"), d.AddDays(-1))

	at := d.At(TimeOfDay{9, 30})
	assert.Equal(t, eastern(t, 9, 30), at)
}
