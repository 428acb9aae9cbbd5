package pipeline

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/cruciblehq/cruxpack/internal/paths"
)

// Copies a file or directory tree from src to dest, creating parents.
//
// File modes are preserved and symlinks are recreated, not followed.
func copyTree(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return err
	}
	if !info.IsDir() {
		return copyEntry(src, dest, info)
	}

	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyEntry(path, filepath.Join(dest, rel), info)
	})
}

// Copies a single file, directory or symlink entry.
func copyEntry(src, dest string, info os.FileInfo) error {
	switch {
	case info.IsDir():
		return os.MkdirAll(dest, info.Mode().Perm()|0o700)

	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return os.Symlink(target, dest)

	case info.Mode().IsRegular():
		return copyFile(src, dest, info.Mode().Perm())
	}

	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Moves a directory, copying it when a rename is not possible, such as
// across file systems.
func moveDir(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyTree(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// Removes the contents of dir, creating it if needed.
func emptyDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, paths.DefaultDirMode)
}

// Returns true if path is an existing regular file.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
