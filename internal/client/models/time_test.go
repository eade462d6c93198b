package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTime_RoundTrip(t *testing.T) {
	in := time.Date(2026, 3, 1, 10, 30, 5, 123456789, time.UTC)

	got, err := ParseTime(EncodeTime(in))
	require.NoError(t, err)
	assert.True(t, got.Equal(in))
}

func TestEncodeTime_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2026, 3, 1, 13, 30, 5, 0, loc)

	got, err := ParseTime(EncodeTime(in))
	require.NoError(t, err)
	assert.True(t, got.Equal(in))
	assert.Equal(t, "2026-03-01T10:30:05.000000000Z", EncodeTime(in))
}

func TestEncodeTime_LexicographicOrderMatchesChronological(t *testing.T) {
	// An exact-second timestamp must not sort after a fractional one.
	exact := time.Date(2026, 3, 1, 10, 30, 5, 0, time.UTC)
	fractional := exact.Add(500 * time.Millisecond)

	assert.Less(t, EncodeTime(exact), EncodeTime(fractional))
	assert.Less(t, EncodeTime(fractional), EncodeTime(exact.Add(time.Second)))
}

func TestParseTime_AcceptsShortFractions(t *testing.T) {
	got, err := ParseTime("2026-03-01T10:30:05.5Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 1, 10, 30, 5, 500000000, time.UTC)))

	_, err = ParseTime("not a timestamp")
	require.Error(t, err)
}
