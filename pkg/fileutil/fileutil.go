// Package fileutil implements file utilities.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lgtm-migrator/genienlp-tester/pkg/randutil"
)

// MkTmpDir creates a temp directory.
func MkTmpDir(baseDir string, pfx string) (dir string) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	var err error
	dir, err = os.MkdirTemp(baseDir, pfx)
	if err != nil {
		panic(err)
	}
	return dir
}

// WriteTempFile writes data to a temporary file.
func WriteTempFile(d []byte) (path string, err error) {
	var f *os.File
	f, err = os.CreateTemp(os.TempDir(), fmt.Sprintf("%X", time.Now().UnixNano()))
	if err != nil {
		return "", err
	}
	path = f.Name()
	_, err = f.Write(d)
	f.Close()
	return path, err
}

// GetTempFilePath creates a file path to a temporary file that does not exist yet.
func GetTempFilePath() (path string) {
	f, err := os.CreateTemp(os.TempDir(), fmt.Sprintf("%x", time.Now().UnixNano()))
	if err != nil {
		return filepath.Join(os.TempDir(), fmt.Sprintf("%x%s", time.Now().UnixNano(), randutil.String(5)))
	}
	path = f.Name()
	f.Close()
	os.RemoveAll(path)
	return path
}

// Exist returns true if a file or directory exists.
func Exist(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(name)
	return err == nil
}

// ExistNonEmpty returns true if a file exists and is not empty.
func ExistNonEmpty(name string) bool {
	if name == "" {
		return false
	}
	fi, err := os.Stat(name)
	if err != nil {
		return false
	}
	return fi.Size() > 0
}

// Copy copies a file and writes/overwrites to the destination file.
func Copy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("mkdirall: %v", err)
	}

	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open(%q): %v", src, err)
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create(%q): %v", dst, err)
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	return nil
}

// CopyDir copies a directory tree and writes/overwrites to the destination
// directory. Only regular files and sub-directories are copied.
func CopyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return Copy(path, target)
	})
}

// IsDirWriteable checks if dir is writable by writing and removing a file.
func IsDirWriteable(dir string) error {
	f := filepath.Join(dir, ".touch")
	if err := os.WriteFile(f, []byte(""), 0600); err != nil {
		return err
	}
	return os.Remove(f)
}
