package watch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdsync/mdsync/internal/errkind"
)

// subdirs returns root and every directory beneath it; fsnotify has no
// native recursive mode, so each directory is registered individually.
func subdirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Maildir, fmt.Errorf("walk %s: %w", root, err))
	}
	return dirs, nil
}
