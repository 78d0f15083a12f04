package assets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/tools/txtar"

	"artgen/internal/assets"
	"artgen/internal/errkind"
)

const tree = `
-- Eyes/Blue.png --
-- Eyes/Glowing Blue.png --
-- Eyes/02 Cat Eyes final.png --
-- Eyes/.DS_Store --
-- Mouth/Smile.png --
-- Nose/None.png --
`

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range txtar.Parse([]byte(tree)).Files {
		path := filepath.Join(root, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestResolve(t *testing.T) {
	root := writeTree(t)
	d := assets.NewDir(root)
	ctx := context.Background()

	tests := []struct {
		category, item string
		want           string
	}{
		// Exact stem beats the earlier substring match "Blue" in "Glowing Blue".
		{"Eyes", "Blue", "Eyes/Blue.png"},
		{"Eyes", "Glowing Blue", "Eyes/Glowing Blue.png"},
		{"Eyes", "Cat Eyes", "Eyes/02 Cat Eyes final.png"},
		{"Nose", "None", "Nose/None.png"},
	}
	for _, tc := range tests {
		got, err := d.Resolve(ctx, tc.category, tc.item)
		if err != nil {
			t.Errorf("Resolve(%s, %s): %v", tc.category, tc.item, err)
			continue
		}
		if want := filepath.Join(root, filepath.FromSlash(tc.want)); got != want {
			t.Errorf("Resolve(%s, %s) = %s, want %s", tc.category, tc.item, got, want)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	d := assets.NewDir(writeTree(t))
	ctx := context.Background()

	for _, tc := range []struct{ category, item string }{
		{"Eyes", "Laser Eyes"},
		{"Hat", "Cap"},
		{"Eyes", ""},
		{"Eyes", "DS_Store"},
	} {
		_, err := d.Resolve(ctx, tc.category, tc.item)
		if !errors.Is(err, errkind.ErrNotFound) {
			t.Errorf("Resolve(%s, %q): expected NotFound, got %v", tc.category, tc.item, err)
		}
	}
}

func TestResolveCachesListing(t *testing.T) {
	root := writeTree(t)
	d := assets.NewDir(root)
	ctx := context.Background()

	if _, err := d.Resolve(ctx, "Mouth", "Smile"); err != nil {
		t.Fatal(err)
	}
	// Files added after the first lookup are not seen.
	if err := os.WriteFile(filepath.Join(root, "Mouth", "Scuba.png"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Resolve(ctx, "Mouth", "Scuba"); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("expected cached listing to miss Scuba, got %v", err)
	}
}

func TestResolveConcurrent(t *testing.T) {
	d := assets.NewDir(writeTree(t))
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Resolve(ctx, "Eyes", "Blue"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
}

func TestResolveSkip(t *testing.T) {
	root := writeTree(t)
	d := assets.NewDir(root)
	d.Skip = func(rel string) bool { return rel == "Eyes/Blue.png" }

	got, err := d.Resolve(context.Background(), "Eyes", "Blue")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(root, "Eyes", "Glowing Blue.png"); got != want {
		t.Errorf("Resolve = %s, want %s", got, want)
	}
}
