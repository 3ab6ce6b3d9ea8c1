package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracq/internal/compile"
	"tracq/internal/query"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"10", "20"})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, ids)

	_, err = parseIDs([]string{"ten"})
	require.Error(t, err)
}

func TestDowngradeMatches(t *testing.T) {
	g, err := query.ParseList([]string{"crash"}, query.KindText, invocationNow)
	require.NoError(t, err)

	t.Run("bugzilla untouched", func(t *testing.T) {
		got := downgradeMatches(compile.Bugzilla, "summary", g)
		assert.Equal(t, query.OpContains, got.Items[0].Match.Op)
	})

	t.Run("redmine downgraded", func(t *testing.T) {
		got := downgradeMatches(compile.Redmine, "summary", g)
		assert.Equal(t, query.OpIContains, got.Items[0].Match.Op)
	})

	t.Run("explicit operators untouched", func(t *testing.T) {
		exact, err := query.ParseList([]string{"== crash"}, query.KindText, invocationNow)
		require.NoError(t, err)
		got := downgradeMatches(compile.GitHub, "summary", exact)
		assert.Equal(t, query.OpEquals, got.Items[0].Match.Op)
	})
}

func TestBuildSearchFragments(t *testing.T) {
	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Set("summary", "crash"))
	require.NoError(t, cmd.Flags().Set("id", ">10,<20"))

	frags, err := buildSearchFragments(cmd, compile.Bugzilla)
	require.NoError(t, err)
	require.Len(t, frags, 2)

	byField := map[string]int{}
	for i, f := range frags {
		byField[f.Field] = i
	}
	require.Contains(t, byField, "summary")
	require.Contains(t, byField, "id")
	assert.Equal(t, "greaterthan", frags[byField["id"]].Chart[0].Op)
}

func TestBuildSearchFragmentsTriState(t *testing.T) {
	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Set("milestone", "false"))

	frags, err := buildSearchFragments(cmd, compile.Bugzilla)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "isempty", frags[0].Chart[0].Op)
}

func TestBuildSearchFragmentsChanged(t *testing.T) {
	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Set("changed", "!status"))

	frags, err := buildSearchFragments(cmd, compile.Bugzilla)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.True(t, frags[0].Chart[0].Negate)

	_, err = buildSearchFragments(cmd, compile.GitHub)
	require.Error(t, err)
}

func TestBuildOrder(t *testing.T) {
	cmd := newSearchCmd()
	require.NoError(t, cmd.Flags().Set("order", "-created,id"))

	order, err := buildOrder(cmd, compile.Bugzilla)
	require.NoError(t, err)
	assert.Equal(t, []string{"opendate DESC", "bug_id"}, order)
}

func TestBuildUpdateFragments(t *testing.T) {
	cmd := newUpdateCmd()
	require.NoError(t, cmd.Flags().Set("labels", "+regression,-stale"))
	require.NoError(t, cmd.Flags().Set("severity", "critical"))

	frags, err := buildUpdateFragments(cmd, compile.Bugzilla)
	require.NoError(t, err)
	require.Len(t, frags, 2)
}

func TestBuildUpdateFragmentsStdin(t *testing.T) {
	cmd := newUpdateCmd()
	cmd.SetIn(strings.NewReader("regression\nstale\n"))
	require.NoError(t, cmd.Flags().Set("labels", "-"))

	frags, err := buildUpdateFragments(cmd, compile.Bugzilla)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, map[string]any{
		"keywords": map[string]any{"set": []string{"regression", "stale"}},
	}, frags[0].Update)
}

func TestBuildCreateFragments(t *testing.T) {
	cmd := newCreateCmd()
	cmd.SetIn(strings.NewReader("panics every time\n"))
	require.NoError(t, cmd.Flags().Set("summary", "crash on boot"))
	require.NoError(t, cmd.Flags().Set("description", "-"))
	require.NoError(t, cmd.Flags().Set("labels", "regression,boot"))

	frags, err := buildCreateFragments(cmd, compile.Bugzilla)
	require.NoError(t, err)
	require.Len(t, frags, 3)

	byField := map[string]map[string]any{}
	for _, f := range frags {
		byField[f.Field] = f.Update
	}
	assert.Equal(t, map[string]any{"summary": "crash on boot"}, byField["summary"])
	assert.Equal(t, map[string]any{"description": "panics every time"}, byField["description"])
	assert.Equal(t, map[string]any{"keywords": []string{"regression", "boot"}}, byField["labels"])
}

func TestBuildCreateFragmentsUnsupportedField(t *testing.T) {
	cmd := newCreateCmd()
	require.NoError(t, cmd.Flags().Set("product", "widget"))

	_, err := buildCreateFragments(cmd, compile.GitHub)
	require.Error(t, err)
}
