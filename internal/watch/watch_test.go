package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartEmitsOnChangeForDirWrite(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan struct{}, 1)
	w, err := start(dir, 20*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, func(error) {})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "msg1"), []byte("x"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was never called after a directory write")
	}
}

func TestSubdirsIncludesNestedDirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "new")
	if err := os.Mkdir(nested, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	dirs, err := subdirs(root)
	if err != nil {
		t.Fatalf("subdirs: %v", err)
	}

	found := false
	for _, d := range dirs {
		if d == nested {
			found = true
		}
	}
	if !found {
		t.Fatalf("subdirs(%s) = %v, want to include %s", root, dirs, nested)
	}
}
