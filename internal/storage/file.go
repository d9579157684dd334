package storage

import (
	"context"
	"os"
	"path/filepath"
)

type fileBackend struct{}

// put writes to a sibling temp file and renames it over the target.
func (fileBackend) put(ctx context.Context, loc Location, obj Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(loc.Key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(loc.Key)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(obj.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), loc.Key)
}
