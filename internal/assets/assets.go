// Package assets locates the image file for a resolved trait.
//
// Directory layout:
//
//	<root>/<category>/
//	    <item>.png          # exact stem match wins
//	    01 <item> v2.png    # otherwise first file containing the item name
package assets

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"artgen/internal/errkind"
)

// Resolver maps a category and item to an asset location.
type Resolver interface {
	Resolve(ctx context.Context, category, item string) (string, error)
}

// Dir resolves assets under a root directory. Directory listings are read
// once per category and cached; Dir is safe for concurrent use.
type Dir struct {
	Root string
	// Skip, when set, hides files whose slash-separated path relative to
	// Root it reports true for.
	Skip func(rel string) bool

	mu       sync.Mutex
	listings map[string]*listing
}

type listing struct {
	once  sync.Once
	names []string
	err   error
}

// NewDir returns a resolver rooted at root.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Resolve returns the path of the asset for item in category.
func (d *Dir) Resolve(ctx context.Context, category, item string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	names, err := d.list(category)
	if err != nil {
		return "", err
	}
	name, ok := match(names, item)
	if !ok {
		return "", errkind.Errorf(errkind.NotFound, "%s/%s not found", category, item)
	}
	return filepath.Join(d.Root, category, name), nil
}

func (d *Dir) list(category string) ([]string, error) {
	d.mu.Lock()
	if d.listings == nil {
		d.listings = make(map[string]*listing)
	}
	l, ok := d.listings[category]
	if !ok {
		l = &listing{}
		d.listings[category] = l
	}
	d.mu.Unlock()

	l.once.Do(func() {
		entries, err := os.ReadDir(filepath.Join(d.Root, category))
		if err != nil {
			if os.IsNotExist(err) {
				l.err = errkind.Wrap(errkind.NotFound, "layer directory "+category, err)
			} else {
				l.err = errkind.Wrap(errkind.IO, "read layer directory "+category, err)
			}
			return
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if d.Skip != nil && d.Skip(category+"/"+e.Name()) {
				continue
			}
			l.names = append(l.names, e.Name())
		}
		sort.Strings(l.names)
	})
	return l.names, l.err
}

// match prefers a file whose stem equals item, then the first file whose
// name contains item.
func match(names []string, item string) (string, bool) {
	if item == "" {
		return "", false
	}
	for _, n := range names {
		if strings.TrimSuffix(n, filepath.Ext(n)) == item {
			return n, true
		}
	}
	for _, n := range names {
		if strings.Contains(n, item) {
			return n, true
		}
	}
	return "", false
}
