// Package storage defines the destinations an uploaded asset is written to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Destination is one directory that receives a copy of every stored asset.
type Destination interface {
	// Name is a short label used in logs and errors.
	Name() string
	// Root is the directory files are written under.
	Root() string
	// Ensure creates the root directory if it does not exist.
	Ensure(ctx context.Context) error
	// Path returns the absolute location of name under the root.
	Path(name string) string
	// Write stores data under name, replacing any existing file.
	Write(ctx context.Context, name string, data []byte) error
	// Remove deletes name. A missing file yields an error matching fs.ErrNotExist.
	Remove(ctx context.Context, name string) error
}

// LocalDestination writes files to a directory on the local disk.
type LocalDestination struct {
	name     string
	root     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// Option customises a LocalDestination.
type Option func(*LocalDestination)

// WithName overrides the label derived from the root directory.
func WithName(name string) Option {
	return func(d *LocalDestination) {
		if strings.TrimSpace(name) != "" {
			d.name = name
		}
	}
}

// WithPermissions overrides the directory and file modes.
func WithPermissions(dirPerm, filePerm os.FileMode) Option {
	return func(d *LocalDestination) {
		if dirPerm != 0 {
			d.dirPerm = dirPerm
		}
		if filePerm != 0 {
			d.filePerm = filePerm
		}
	}
}

// NewLocalDestination resolves root to an absolute path. The directory is
// not created until Ensure is called.
func NewLocalDestination(root string, opts ...Option) (*LocalDestination, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("destination root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination root %q: %w", root, err)
	}

	d := &LocalDestination{
		name:     filepath.ToSlash(filepath.Clean(root)),
		root:     abs,
		dirPerm:  0o755,
		filePerm: 0o644,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewLocalDestinations builds one LocalDestination per root, in order.
func NewLocalDestinations(roots []string) ([]Destination, error) {
	if len(roots) == 0 {
		return nil, errors.New("at least one destination root is required")
	}
	dests := make([]Destination, 0, len(roots))
	for _, root := range roots {
		d, err := NewLocalDestination(root)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, nil
}

func (d *LocalDestination) Name() string { return d.name }

func (d *LocalDestination) Root() string { return d.root }

func (d *LocalDestination) Ensure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, d.dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", d.root, err)
	}
	return nil
}

func (d *LocalDestination) Path(name string) string {
	return filepath.Join(d.root, name)
}

func (d *LocalDestination) Write(ctx context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(d.Path(name), data, d.filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.Path(name), err)
	}
	return nil
}

func (d *LocalDestination) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(d.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("failed to remove %s: %w", d.Path(name), err)
	}
	return nil
}

// validName rejects anything that could escape the root directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
