// Package render turns an ordered stack of layer assets into one image.
//
// Two compositors are provided. Image draws the layers in-process with
// image/draw. Process hands the job to an external renderer command, one
// process per image, and only looks at its exit status and output file.
// Either way a failed render leaves no file behind.
package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"artgen/internal/errkind"
)

// Format is an output image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg and jpg (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	}
	return "", errkind.Errorf(errkind.Config, "unsupported image format %q (want png or jpeg)", s)
}

// Job describes one image to render.
type Job struct {
	Index     int
	Format    Format
	OutputDir string
	// Layers are asset paths, bottom first.
	Layers []string
}

// Filename is the image name relative to the output directory.
func (j Job) Filename() string {
	return fmt.Sprintf("%d.%s", j.Index, j.Format)
}

// Path is the full output path.
func (j Job) Path() string {
	return filepath.Join(j.OutputDir, j.Filename())
}

// Compositor renders a job and returns the written image path.
type Compositor interface {
	Render(ctx context.Context, job Job) (string, error)
}
