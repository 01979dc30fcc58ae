// Package fsops is the filesystem capability the command handlers call into.
// Paths passed here have already been confined by the sandbox resolver.
package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/matozelenak/minidrive/internal/protocol"
)

// FileType classifies a filesystem object.
type FileType int

const (
	TypeOther FileType = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return protocol.EntryFile
	case TypeDirectory:
		return protocol.EntryDirectory
	case TypeSymlink:
		return protocol.EntrySymlink
	default:
		return protocol.EntryOther
	}
}

func typeOf(mode fs.FileMode) FileType {
	switch {
	case mode.IsRegular():
		return TypeRegular
	case mode.IsDir():
		return TypeDirectory
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	default:
		return TypeOther
	}
}

// FS is the set of filesystem operations the server needs.
type FS interface {
	// Exists reports whether path names an existing object, following
	// symlinks. A dangling symlink does not exist.
	Exists(path string) (bool, error)
	// FileType returns the type of the object path refers to, following symlinks.
	FileType(path string) (FileType, error)
	// ListEntries lists a directory sorted by name.
	ListEntries(path string) ([]protocol.Entry, error)
	// CreateDir creates a directory; with parents it behaves like mkdir -p.
	CreateDir(path string, parents bool) error
	// RemoveFile removes a single non-directory entry.
	RemoveFile(path string) error
	// RemoveDirRecursive removes a directory and everything below it.
	RemoveDirRecursive(path string) error
}

// OS implements FS on the host filesystem.
type OS struct{}

var _ FS = OS{}

func (OS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func (OS) FileType(path string) (FileType, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return TypeOther, fmt.Errorf("stat %s: %w", path, err)
	}
	return typeOf(fi.Mode()), nil
}

func (OS) ListEntries(path string) ([]protocol.Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", path, err)
	}
	entries := make([]protocol.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		fi, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", de.Name(), err)
		}
		t := typeOf(fi.Mode())
		var size uint64
		if t == TypeRegular {
			size = uint64(fi.Size())
		}
		entries = append(entries, protocol.Entry{Name: de.Name(), Type: t.String(), Size: size})
	}
	return entries, nil
}

func (OS) CreateDir(path string, parents bool) error {
	var err error
	if parents {
		err = os.MkdirAll(path, 0o755)
	} else {
		err = os.Mkdir(path, 0o755)
	}
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

func (OS) RemoveFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (OS) RemoveDirRecursive(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing directory %s: %w", path, err)
	}
	return nil
}
