package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"artgen/internal/errkind"
)

// Image composites layers in-process. The canvas takes the bounds of the
// bottom layer; later layers are drawn over it aligned at their origin.
type Image struct {
	// JPEGQuality defaults to 90.
	JPEGQuality int
}

// Render implements Compositor.
func (c *Image) Render(ctx context.Context, job Job) (string, error) {
	if len(job.Layers) == 0 {
		return "", errkind.Errorf(errkind.Render, "image %d: no layers", job.Index)
	}
	var canvas *image.RGBA
	for _, path := range job.Layers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := decodeFile(path)
		if err != nil {
			return "", errkind.Wrap(errkind.Render, fmt.Sprintf("image %d", job.Index), err)
		}
		if canvas == nil {
			canvas = image.NewRGBA(img.Bounds())
		}
		draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Over)
	}

	out := job.Path()
	if err := c.write(out, job.Format, canvas); err != nil {
		return "", errkind.Wrap(errkind.Render, fmt.Sprintf("image %d", job.Index), err)
	}
	return out, nil
}

// write encodes to a temp file in the target directory and renames it into
// place, so a failed encode never leaves a partial image.
func (c *Image) write(path string, format Format, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	switch format {
	case JPEG:
		q := c.JPEGQuality
		if q <= 0 {
			q = 90
		}
		err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: q})
	case PNG:
		err = png.Encode(tmp, img)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
