package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracq/internal/query"
)

func TestCompileDeltaBugzilla(t *testing.T) {
	t.Run("add and remove map onto the native body", func(t *testing.T) {
		f, err := CompileDelta(Bugzilla, "labels", query.ParseDelta([]string{"+a,-b"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"keywords": map[string]any{"add": []string{"a"}, "remove": []string{"b"}},
		}, f.Update)
		assert.False(t, f.NeedsRead)
	})

	t.Run("bare entry replaces the whole list", func(t *testing.T) {
		f, err := CompileDelta(Bugzilla, "labels", query.ParseDelta([]string{"+a,-b,c"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"keywords": map[string]any{"set": []string{"c"}},
		}, f.Update)
	})

	t.Run("empty argument clears the list", func(t *testing.T) {
		f, err := CompileDelta(Bugzilla, "labels", query.ParseDelta([]string{""}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"keywords": map[string]any{"set": []string{}},
		}, f.Update)
	})

	t.Run("scalar set", func(t *testing.T) {
		f, err := CompileDelta(Bugzilla, "severity", query.ParseDelta([]string{"critical"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"severity": "critical"}, f.Update)
	})

	t.Run("scalar add rejected", func(t *testing.T) {
		_, err := CompileDelta(Bugzilla, "severity", query.ParseDelta([]string{"+critical"}))
		var ue *UnsupportedError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "add/remove", ue.Operator)
	})

	t.Run("read-only field rejected", func(t *testing.T) {
		_, err := CompileDelta(Bugzilla, "creator", query.ParseDelta([]string{"alice"}))
		require.Error(t, err)
	})
}

func TestCompileDeltaRedmine(t *testing.T) {
	t.Run("incremental change needs a read", func(t *testing.T) {
		f, err := CompileDelta(Redmine, "cc", query.ParseDelta([]string{"+7,-9"}))
		require.NoError(t, err)
		assert.True(t, f.NeedsRead)
		assert.Equal(t, []string{"7"}, f.Add)
		assert.Equal(t, []string{"9"}, f.Remove)
		assert.Nil(t, f.Update)
	})

	t.Run("set compiles directly", func(t *testing.T) {
		f, err := CompileDelta(Redmine, "cc", query.ParseDelta([]string{"7,9"}))
		require.NoError(t, err)
		assert.False(t, f.NeedsRead)
		assert.Equal(t, map[string]any{"watcher_user_ids": []string{"7", "9"}}, f.Update)
	})
}

func TestCompileDeltaGitHub(t *testing.T) {
	t.Run("labels use the native incremental endpoints", func(t *testing.T) {
		f, err := CompileDelta(GitHub, "labels", query.ParseDelta([]string{"+bug,-stale"}))
		require.NoError(t, err)
		assert.False(t, f.NeedsRead)
		assert.Equal(t, []string{"bug"}, f.Add)
		assert.Equal(t, []string{"stale"}, f.Remove)
	})

	t.Run("label set replaces", func(t *testing.T) {
		f, err := CompileDelta(GitHub, "labels", query.ParseDelta([]string{"bug,regression"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"labels": []string{"bug", "regression"}}, f.Update)
	})

	t.Run("clear compiles to an empty list", func(t *testing.T) {
		f, err := CompileDelta(GitHub, "labels", query.ParseDelta(nil))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"labels": []string{}}, f.Update)
	})
}

func TestCompileSet(t *testing.T) {
	t.Run("list replacement", func(t *testing.T) {
		f, err := CompileSet(Redmine, "cc", []string{"7", "11"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"watcher_user_ids": []string{"7", "11"}}, f.Update)
	})

	t.Run("scalar takes exactly one value", func(t *testing.T) {
		f, err := CompileSet(GitHub, "status", []string{"closed"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"state": "closed"}, f.Update)

		_, err = CompileSet(GitHub, "status", []string{"a", "b"})
		require.Error(t, err)
	})

	t.Run("delta set and direct set encode identically", func(t *testing.T) {
		a, err := CompileDelta(GitHub, "labels", query.ParseDelta([]string{"x,y"}))
		require.NoError(t, err)
		b, err := CompileSet(GitHub, "labels", []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, a.Encode(), b.Encode())
	})
}

func TestCompileCreate(t *testing.T) {
	t.Run("scalar compiles to the plain update key", func(t *testing.T) {
		f, err := CompileCreate(Bugzilla, "description", []string{"panics on boot"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"description": "panics on boot"}, f.Update)
	})

	t.Run("github description maps to the issue body", func(t *testing.T) {
		f, err := CompileCreate(GitHub, "description", []string{"panics on boot"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"body": "panics on boot"}, f.Update)
	})

	t.Run("list compiles to a bare array", func(t *testing.T) {
		f, err := CompileCreate(Bugzilla, "labels", []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"keywords": []string{"a", "b"}}, f.Update)
	})

	t.Run("read-only field rejected", func(t *testing.T) {
		_, err := CompileCreate(Bugzilla, "creator", []string{"alice"})
		var ue *UnsupportedError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "create", ue.Operator)
	})

	t.Run("creation-only fields are not updatable", func(t *testing.T) {
		_, err := CompileSet(Bugzilla, "description", []string{"x"})
		require.Error(t, err)
		_, err = CompileDelta(GitHub, "description", query.ParseDelta([]string{"x"}))
		require.Error(t, err)
	})
}
