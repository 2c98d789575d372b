package mcp

import (
	"context"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestRootDir(t *testing.T) {
	tests := []struct {
		name  string
		roots []mcplib.Root
		want  string
	}{
		{name: "empty roots", roots: nil, want: ""},
		{name: "single file URI", roots: []mcplib.Root{{URI: "file:///home/surveyor/site-17"}}, want: "/home/surveyor/site-17"},
		{
			name:  "multiple roots uses first",
			roots: []mcplib.Root{{URI: "file:///data/a"}, {URI: "file:///data/b"}},
			want:  "/data/a",
		},
		{
			name:  "non-file URI skipped",
			roots: []mcplib.Root{{URI: "https://example.com/repo"}, {URI: "file:///data/photos"}},
			want:  "/data/photos",
		},
		{name: "trailing slash stripped", roots: []mcplib.Root{{URI: "file:///data/photos/"}}, want: "/data/photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rootDir(tt.roots))
		})
	}
}

func TestResolvePath_NoSession(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	assert.Equal(t, "photos", s.resolvePath(ctx, "photos"))
	assert.Equal(t, "/abs/photos", s.resolvePath(ctx, "/abs/photos"))
	assert.Equal(t, "", s.resolvePath(ctx, ""))
}

func TestRootsCache(t *testing.T) {
	rc := newRootsCache()
	_, ok := rc.Get("s1")
	assert.False(t, ok)

	rc.Set("s1", []mcplib.Root{{URI: "file:///data"}})
	roots, ok := rc.Get("s1")
	assert.True(t, ok)
	assert.Len(t, roots, 1)
}
