package metadata

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/pretty"

	"artgen/internal/errkind"
)

// AggregateName is the file holding every record of a batch.
const AggregateName = "all.json"

// Writer persists metadata records.
type Writer interface {
	// Write stores one record and returns where it went.
	Write(ctx context.Context, rec Record) (string, error)
	// WriteAll stores the aggregate of a finished batch.
	WriteAll(ctx context.Context, recs []Record) (string, error)
}

// Dir writes <Path>/<index>.json and <Path>/all.json.
type Dir struct {
	Path string
}

// Write stores rec as indented JSON.
func (d *Dir) Write(ctx context.Context, rec Record) (string, error) {
	path := filepath.Join(d.Path, fmt.Sprintf("%d.json", rec.Index))
	if err := writeFile(path, pretty.Pretty(rec.Doc)); err != nil {
		return "", errkind.Wrap(errkind.IO, fmt.Sprintf("write metadata %d", rec.Index), err)
	}
	return path, nil
}

// WriteAll stores recs, in slice order, as one compact JSON array.
func (d *Dir) WriteAll(ctx context.Context, recs []Record) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range recs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(pretty.Ugly(r.Doc))
	}
	buf.WriteByte(']')

	path := filepath.Join(d.Path, AggregateName)
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", errkind.Wrap(errkind.IO, "write "+AggregateName, err)
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
