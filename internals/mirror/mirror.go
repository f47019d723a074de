// Package mirror copies and moves package directories around. It
// backs both cache population (move with copy fallback) and the final
// materialization into the working set (always copy).
package mirror

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyError is returned when a mirror copy can not be performed
type CopyError struct {
	Src string
	Dst string
	Err error
}

func (e *CopyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("can not mirror %s to %s: source not found", e.Src, e.Dst)
	}
	return fmt.Sprintf("can not mirror %s to %s: %v", e.Src, e.Dst, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Mirror recursively copies the contents of src into dst, merging
// into (and overwriting) whatever dst already contains. A missing src
// is fine as long as dst exists.
func Mirror(src string, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if _, dstErr := os.Stat(dst); dstErr == nil {
			return nil
		}
		return &CopyError{Src: src, Dst: dst}
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return &CopyError{Src: src, Dst: dst, Err: err}
	}
	return nil
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	// truncates an existing file, which gives us overwrite semantics
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
