package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDelta(t *testing.T) {
	tests := []struct {
		name        string
		occurrences []string
		want        DeltaList
	}{
		{
			name:        "add and remove",
			occurrences: []string{"+a,-b"},
			want:        DeltaList{Add: []string{"a"}, Remove: []string{"b"}},
		},
		{
			name:        "bare entry switches to set, discarding prefixed entries",
			occurrences: []string{"+a,-b,c"},
			want:        DeltaList{Set: []string{"c"}},
		},
		{
			name:        "all bare entries replace the list",
			occurrences: []string{"a,b"},
			want:        DeltaList{Set: []string{"a", "b"}},
		},
		{
			name:        "empty argument clears the list",
			occurrences: []string{""},
			want:        DeltaList{Clear: true},
		},
		{
			name:        "no occurrences clears the list",
			occurrences: nil,
			want:        DeltaList{Clear: true},
		},
		{
			name:        "duplicates are idempotent",
			occurrences: []string{"+a,+a,-b", "-b"},
			want:        DeltaList{Add: []string{"a"}, Remove: []string{"b"}},
		},
		{
			name:        "set across occurrences",
			occurrences: []string{"+a", "c"},
			want:        DeltaList{Set: []string{"c"}},
		},
		{
			name:        "entry order does not affect set precedence",
			occurrences: []string{"c,+a,-b"},
			want:        DeltaList{Set: []string{"c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDelta(tt.occurrences))
		})
	}
}
