package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Disk writes objects below root and serves them under urlPrefix.
type Disk struct {
	root      string
	urlPrefix string
}

func NewDisk(root, urlPrefix string) *Disk {
	return &Disk{root: root, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}
}

func (d *Disk) Root() string { return d.root }

func (d *Disk) Put(_ context.Context, key, _ string, body io.ReadSeeker) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (d *Disk) Delete(_ context.Context, key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Disk) URL(key string) string {
	return d.urlPrefix + "/" + strings.TrimLeft(key, "/")
}

func (d *Disk) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errInvalidKey
	}
	return filepath.Join(d.root, clean), nil
}
