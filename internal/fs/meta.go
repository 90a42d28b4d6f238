package fs

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// Meta is the filesystem metadata the caches validate against.
type Meta struct {
	ModTime time.Time
	Size    int64
	Exists  bool
	IsDir   bool
}

// StatFunc reports the metadata of the resource at path. A missing resource
// is reported as Meta{Exists: false} with a nil error.
type StatFunc func(path string) (Meta, error)

// Stat is the StatFunc backed by os.Stat.
func Stat(path string) (Meta, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, nil
		}
		return Meta{}, err
	}
	return MetaFromInfo(info), nil
}

// MetaFromInfo converts an fs.FileInfo into Meta.
func MetaFromInfo(info fs.FileInfo) Meta {
	return Meta{
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Exists:  true,
		IsDir:   info.IsDir(),
	}
}

// Same reports whether two observations carry the same validation token.
func (m Meta) Same(other Meta) bool {
	return m.Exists == other.Exists && m.ModTime.Equal(other.ModTime)
}

// IsDirectory reports whether path exists and is a directory.
func IsDirectory(path string) bool {
	m, err := Stat(path)
	return err == nil && m.Exists && m.IsDir
}
