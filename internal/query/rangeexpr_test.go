package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestParseRange_Relational(t *testing.T) {
	tests := []struct {
		input string
		op    RangeOp
		bound int64
	}{
		{"<10", RangeLt, 10},
		{"<=10", RangeLe, 10},
		{"=10", RangeEq, 10},
		{"!=10", RangeNe, 10},
		{">=10", RangeGe, 10},
		{">10", RangeGt, 10},
		{"> 10", RangeGt, 10},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := ParseRange(tt.input, KindID, testNow)
			require.NoError(t, err)
			assert.True(t, r.Relational)
			assert.Equal(t, tt.op, r.Op)
			assert.Equal(t, ScalarInt, r.Bound.Kind)
			assert.Equal(t, tt.bound, r.Bound.Int)
		})
	}
}

func TestParseRange_Intervals(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		lo, hi      *int64
		inclusiveHi bool
	}{
		{"exclusive", "10..20", ptr(int64(10)), ptr(int64(20)), false},
		{"inclusive", "10..=20", ptr(int64(10)), ptr(int64(20)), true},
		{"open lower", "..20", nil, ptr(int64(20)), false},
		{"open lower inclusive", "..=20", nil, ptr(int64(20)), true},
		{"open upper", "10..", ptr(int64(10)), nil, false},
		{"fully open", "..", nil, nil, false},
		{"equal bounds", "10..10", ptr(int64(10)), ptr(int64(10)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRange(tt.input, KindID, testNow)
			require.NoError(t, err)
			assert.False(t, r.Relational)
			assert.Equal(t, tt.inclusiveHi, r.InclusiveHi)
			if tt.lo == nil {
				assert.Nil(t, r.Lo)
			} else {
				require.NotNil(t, r.Lo)
				assert.Equal(t, *tt.lo, r.Lo.Int)
			}
			if tt.hi == nil {
				assert.Nil(t, r.Hi)
			} else {
				require.NotNil(t, r.Hi)
				assert.Equal(t, *tt.hi, r.Hi.Int)
			}
		})
	}
}

func TestParseRange_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"inverted bounds", "20..10"},
		{"inverted inclusive bounds", "20..=10"},
		{"no operator", "10"},
		{"garbage bound", ">abc@"},
		{"garbage interval bound", "abc@..10"},
		{"mixed scalar kinds", "10..2026-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRange(tt.input, KindID, testNow)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestParseRange_TimeScalars(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{">=2020", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2020..2024", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{">=2020-02", time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)},
		{">=2020-02-03", time.Date(2020, 2, 3, 0, 0, 0, 0, time.UTC)},
		{">=2020-02-03T04:05:06Z", time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)},
		{">=1d", testNow.Add(-24 * time.Hour)},
		{">=1w", testNow.Add(-7 * 24 * time.Hour)},
		{">=30m", testNow.Add(-30 * time.Minute)},
		{">=2M", testNow.AddDate(0, -2, 0)},
		{">=1y", testNow.AddDate(-1, 0, 0)},
		{">=1d12h", testNow.Add(-36 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r, err := ParseRange(tt.input, KindTime, testNow)
			require.NoError(t, err)
			bound := r.Bound
			if !r.Relational {
				bound = *r.Lo
			}
			require.Equal(t, ScalarTime, bound.Kind)
			assert.True(t, bound.Time.Equal(tt.want),
				"got %s want %s", bound.Time, tt.want)
		})
	}
}

func TestParseRange_BareIntegerByKind(t *testing.T) {
	// The same literal reads as a number on id-like fields and as a year on
	// time fields.
	r, err := ParseRange(">=2020", KindID, testNow)
	require.NoError(t, err)
	assert.Equal(t, ScalarInt, r.Bound.Kind)
	assert.Equal(t, int64(2020), r.Bound.Int)

	r, err = ParseRange(">=2020", KindTime, testNow)
	require.NoError(t, err)
	assert.Equal(t, ScalarTime, r.Bound.Kind)

	// Integers that are not years have no time reading.
	_, err = ParseRange(">=5", KindTime, testNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseScalar_MinuteVersusMonth(t *testing.T) {
	// m and M are distinct, case-sensitive units.
	minute, err := ParseScalar("1m", testNow)
	require.NoError(t, err)
	month, err := ParseScalar("1M", testNow)
	require.NoError(t, err)
	assert.True(t, minute.Time.Equal(testNow.Add(-time.Minute)))
	assert.True(t, month.Time.Equal(testNow.AddDate(0, -1, 0)))
}

func TestScalar_Wire(t *testing.T) {
	n, err := ParseScalar("42", testNow)
	require.NoError(t, err)
	assert.Equal(t, "42", n.Wire())

	ts, err := ParseScalar("2020-02-03T04:05:06Z", testNow)
	require.NoError(t, err)
	assert.Equal(t, "2020-02-03T04:05:06Z", ts.Wire())
}

func TestRange_String(t *testing.T) {
	tests := []string{"<10", ">=2020", "10..20", "10..=20", "..20", "10..", ".."}
	for _, input := range tests {
		r, err := ParseRange(input, KindID, testNow)
		require.NoError(t, err)
		assert.Equal(t, input, r.String())
	}
}

func ptr[T any](v T) *T { return &v }
