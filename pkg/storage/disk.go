package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidName = errors.New("storage: invalid file name")

// FileInfo describes a stored file.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Disk stores flat files under a single directory. Names never contain a
// path separator, so callers cannot escape the root.
type Disk struct {
	root string
}

// NewDisk creates the root directory if needed.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", root, err)
	}
	return &Disk{root: root}, nil
}

func (d *Disk) Root() string {
	return d.root
}

// Path returns the absolute location of name under the root.
func (d *Disk) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(d.root, name), nil
}

// Write stores data under name, replacing any existing file. The file is
// written to a temporary name first and renamed into place.
func (d *Disk) Write(name string, data []byte) (FileInfo, error) {
	p, err := d.Path(name)
	if err != nil {
		return FileInfo{}, err
	}
	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return FileInfo{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return FileInfo{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return FileInfo{}, fmt.Errorf("rename %s: %w", name, err)
	}
	return d.Stat(name)
}

// Create opens name for writing, truncating it.
func (d *Disk) Create(name string) (*os.File, error) {
	p, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Create(p)
}

// Copy streams r into name.
func (d *Disk) Copy(name string, r io.Reader) (FileInfo, error) {
	f, err := d.Create(name)
	if err != nil {
		return FileInfo{}, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		d.Remove(name)
		return FileInfo{}, fmt.Errorf("copy %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return FileInfo{}, err
	}
	return d.Stat(name)
}

func (d *Disk) Read(name string) ([]byte, error) {
	p, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (d *Disk) Open(name string) (*os.File, error) {
	p, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (d *Disk) Stat(name string) (FileInfo, error) {
	p, err := d.Path(name)
	if err != nil {
		return FileInfo{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: name, Path: p, Size: st.Size(), ModTime: st.ModTime()}, nil
}

// Remove deletes name. A missing file is not an error.
func (d *Disk) Remove(name string) error {
	p, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the regular files whose names have the given suffix.
func (d *Disk) List(suffix string) ([]FileInfo, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), suffix) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:    e.Name(),
			Path:    filepath.Join(d.root, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}
