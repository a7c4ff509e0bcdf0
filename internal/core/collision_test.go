package core

import (
	"path/filepath"
	"testing"
)

func TestResolveCollision(t *testing.T) {
	vault := writeVault(t, map[string]string{
		"a.png":   "x",
		"a-1.png": "x",
		"b.png":   "x",
	})

	tests := []struct {
		target string
		want   string
	}{
		{"free.png", "free.png"},
		{"a.png", "a-2.png"},
		{"b.png", "b-1.png"},
		{"sub/a.png", "sub/a.png"},
	}
	for _, tt := range tests {
		got := ResolveCollision(filepath.Join(vault, tt.target))
		if want := filepath.Join(vault, tt.want); got != want {
			t.Errorf("ResolveCollision(%q) = %q, want %q", tt.target, got, want)
		}
		if fileExists(got) {
			t.Errorf("ResolveCollision(%q) returned existing path %q", tt.target, got)
		}
	}
}

func TestResolveCollisionClaimed(t *testing.T) {
	vault := writeVault(t, map[string]string{"x.png": "x"})
	claimed := map[string]bool{filepath.Join(vault, "x-1.png"): true}

	got := resolveCollision(filepath.Join(vault, "x.png"), claimed)
	if want := filepath.Join(vault, "x-2.png"); got != want {
		t.Errorf("resolveCollision = %q, want %q", got, want)
	}
}

func TestResolveCollisionNoExtension(t *testing.T) {
	vault := writeVault(t, map[string]string{"README": "x"})
	got := ResolveCollision(filepath.Join(vault, "README"))
	if want := filepath.Join(vault, "README-1"); got != want {
		t.Errorf("ResolveCollision = %q, want %q", got, want)
	}
}
