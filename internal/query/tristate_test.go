package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTriState(t *testing.T) {
	t.Run("no argument means present", func(t *testing.T) {
		ts := ParseTriState(nil, testNow)
		assert.Equal(t, TriPresent, ts.Kind)
	})

	t.Run("true means present", func(t *testing.T) {
		ts := ParseTriState(ptr("true"), testNow)
		assert.Equal(t, TriPresent, ts.Kind)
	})

	t.Run("false means absent", func(t *testing.T) {
		ts := ParseTriState(ptr("false"), testNow)
		assert.Equal(t, TriAbsent, ts.Kind)
	})

	t.Run("other values constrain content with a match", func(t *testing.T) {
		ts := ParseTriState(ptr("needle"), testNow)
		require.Equal(t, TriMatch, ts.Kind)
		assert.Equal(t, OpContains, ts.Match.Op)
		assert.Equal(t, "needle", ts.Match.Value)
	})

	t.Run("match operator honored", func(t *testing.T) {
		ts := ParseTriState(ptr("== exact"), testNow)
		require.Equal(t, TriMatch, ts.Kind)
		assert.Equal(t, OpEquals, ts.Match.Op)
	})

	t.Run("range values constrain content with a range", func(t *testing.T) {
		ts := ParseTriState(ptr(">10"), testNow)
		require.Equal(t, TriRange, ts.Kind)
		assert.Equal(t, RangeGt, ts.Range.Op)
	})
}

func TestParseChanged(t *testing.T) {
	t.Run("bare field means ever changed", func(t *testing.T) {
		c, err := ParseChanged("status", testNow)
		require.NoError(t, err)
		assert.Equal(t, "status", c.Field)
		assert.False(t, c.Inverted)
		assert.Nil(t, c.Interval)
	})

	t.Run("bang prefix means never changed", func(t *testing.T) {
		c, err := ParseChanged("!status", testNow)
		require.NoError(t, err)
		assert.Equal(t, "status", c.Field)
		assert.True(t, c.Inverted)
	})

	t.Run("interval constrains when", func(t *testing.T) {
		c, err := ParseChanged("status=>=1w", testNow)
		require.NoError(t, err)
		require.NotNil(t, c.Interval)
		assert.Equal(t, RangeGe, c.Interval.Op)
	})

	t.Run("equality rejected", func(t *testing.T) {
		_, err := ParseChanged("status==2020", testNow)
		require.Error(t, err)
	})

	t.Run("inverted with interval rejected", func(t *testing.T) {
		_, err := ParseChanged("!status=>=1w", testNow)
		require.Error(t, err)
	})
}

func TestParseChangedBy(t *testing.T) {
	c, err := ParseChangedBy("status=alice,bob")
	require.NoError(t, err)
	assert.Equal(t, "status", c.Field)
	assert.Equal(t, []string{"alice", "bob"}, c.ByUsers)

	_, err = ParseChangedBy("status")
	assert.Error(t, err)
}

func TestParseChangedFromTo(t *testing.T) {
	c, err := ParseChangedFrom("status=NEW")
	require.NoError(t, err)
	require.NotNil(t, c.From)
	assert.Equal(t, "NEW", *c.From)

	c, err = ParseChangedTo("status=FIXED")
	require.NoError(t, err)
	require.NotNil(t, c.To)
	assert.Equal(t, "FIXED", *c.To)

	_, err = ParseChangedFrom("status=")
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		input string
		want  []Order
	}{
		{"id", []Order{{Field: "id"}}},
		{"+id", []Order{{Field: "id"}}},
		{"-id", []Order{{Field: "id", Descending: true}}},
		{"-priority,id", []Order{{Field: "priority", Descending: true}, {Field: "id"}}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOrder(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOrder("")
	assert.Error(t, err)
	_, err = ParseOrder("-")
	assert.Error(t, err)
}
