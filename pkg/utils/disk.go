package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// SizeOnDisk returns the combined size in bytes of files and directory trees.
// Paths that do not exist count as zero.
func SizeOnDisk(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
