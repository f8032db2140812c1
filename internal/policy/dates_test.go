package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/cp25sy5-modjot/ledger-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sunday, 15 June 2025
var ref = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func TestResolveDate(t *testing.T) {
	tests := []struct {
		phrase string
		want   string
	}{
		{"", "2025-06-15"},
		{"today", "2025-06-15"},
		{"Yesterday", "2025-06-14"},
		{"tomorrow", "2025-06-16"},
		{"gestern", "2025-06-14"},
		{"2025-03-01", "2025-03-01"},
		{"2025-03-01T10:00:00Z", "2025-03-01"},
		{"01.03.2025", "2025-03-01"},
		{"December 2026", "2026-12-31"},
		{"by December 2026", "2026-12-31"},
		{"december", "2025-12-31"},
		{"Dec", "2025-12-31"},
		{"march", "2026-03-31"},
		{"june", "2025-06-30"},
		{"next june", "2026-06-30"},
		{"mai 2026", "2026-05-31"},
		{"summer", "2025-08-31"},
		{"next summer", "2026-08-31"},
		{"winter", "2026-02-28"},
		{"in 3 days", "2025-06-18"},
		{"in two weeks", "2025-06-29"},
		{"in a month", "2025-07-15"},
		{"in 1 year", "2026-06-15"},
		{"in 100 years", "2125-06-15"},
		{"2027", "2027-12-31"},
		{"end of year", "2025-12-31"},
		{"next week", "2025-06-22"},
		{"next month", "2025-07-31"},
		{"next year", "2026-12-31"},
		{"3rd of March", "2026-03-03"},
		{"March 3 2027", "2027-03-03"},
		{"until the end of the month", "2025-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			got, err := ResolveDate(tt.phrase, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestResolveDateUnparseable(t *testing.T) {
	for _, phrase := range []string{
		"someday", "decade", "30.02.2025", "in many days",
		"in 9000 years", "in 99999999999 years", "in 99999999999999999999 days", "3000", "01.01.1800", "december 12025",
	} {
		t.Run(phrase, func(t *testing.T) {
			_, err := ResolveDate(phrase, ref)
			var ne *domain.NormalizationError
			require.True(t, errors.As(err, &ne), "got %v", err)
			assert.Equal(t, domain.UnparseableDate, ne.Reason)
		})
	}
}

func TestResolveTargetDate(t *testing.T) {
	d, err := ResolveTargetDate("  ", ref)
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ResolveTargetDate("next summer", ref)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "2026-08-31", d.Format("2006-01-02"))
}
