package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"artgen/internal/errkind"
)

// Process runs an external renderer once per image:
//
//	<Command> [Args...] <index> <format> <outputDir> <layer>...
//
// The renderer must create <outputDir>/<index>.<format> and exit 0.
type Process struct {
	Command string
	Args    []string
}

// NewProcess splits a command line on whitespace into command and leading
// arguments.
func NewProcess(commandLine string) (*Process, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errkind.New(errkind.Config, "empty renderer command")
	}
	return &Process{Command: fields[0], Args: fields[1:]}, nil
}

// Render implements Compositor.
func (p *Process) Render(ctx context.Context, job Job) (string, error) {
	args := append([]string{}, p.Args...)
	args = append(args, strconv.Itoa(job.Index), string(job.Format), job.OutputDir)
	args = append(args, job.Layers...)

	cmd := exec.CommandContext(ctx, p.Command, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	path := job.Path()
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		return "", errkind.Wrap(errkind.Render, fmt.Sprintf("image %d: %s", job.Index, p.Command), withOutput(err, out.Bytes()))
	}
	if _, err := os.Stat(path); err != nil {
		return "", errkind.Errorf(errkind.Render, "image %d: %s exited 0 but did not write %s", job.Index, p.Command, job.Filename())
	}
	return path, nil
}

// withOutput appends the last line the renderer printed, if any.
func withOutput(err error, output []byte) error {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, last)
}
