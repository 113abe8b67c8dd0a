package fileutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicSameDir_ReplacesAndLeavesNoTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.csv")

	if err := WriteFileAtomicSameDir(p, []byte("a"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomicSameDir(p, []byte("b"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "b" {
		t.Fatalf("content=%q, want %q", string(b), "b")
	}

	ents, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(ents) != 1 {
		t.Fatalf("entries=%d, want 1 (temp file left behind?)", len(ents))
	}
}

func TestAppendJSONLines_AppendsAcrossCalls(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "ckpt.jsonl")
	type row struct {
		ID string `json:"id"`
	}
	if err := AppendJSONLines(p, []row{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := AppendJSONLines(p, []row{{ID: "c"}}); err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if err := AppendJSONLines[row](p, nil); err != nil {
		t.Fatalf("append empty: %v", err)
	}

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 || lines[2] != `{"id":"c"}` {
		t.Fatalf("lines=%q", lines)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("  abc  ", 0); got != "abc" {
		t.Fatalf("Truncate=%q", got)
	}
	if got := Truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("Truncate=%q", got)
	}
	if got := Truncate("héllo wörld", 5); got != "héllo…" {
		t.Fatalf("Truncate cut inside a rune: %q", got)
	}
}
