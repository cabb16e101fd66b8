package stats

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNextSequentialPath(t *testing.T) {
	dir := t.TempDir()
	path, err := NextSequentialPath(dir, "figure", ".png", 0)
	if err != nil {
		t.Fatalf("next path: %v", err)
	}
	if path != filepath.Join(dir, "figure_1.png") {
		t.Fatalf("unexpected first path: %s", path)
	}

	for _, name := range []string{"figure_1.png", "figure_2.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	path, err = NextSequentialPath(dir, "figure", "png", 0)
	if err != nil {
		t.Fatalf("next path: %v", err)
	}
	if path != filepath.Join(dir, "figure_3.png") {
		t.Fatalf("unexpected path: %s", path)
	}

	if _, err := NextSequentialPath(dir, "figure", "png", 2); err == nil {
		t.Fatal("expected exhausted limit error")
	}
}
