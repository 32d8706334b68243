package export

import (
	"context"
	"os"
	"path/filepath"
)

type FileDestination struct{ Path string }

func (d FileDestination) Write(_ context.Context, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return err
	}
	tmp := d.Path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.Path)
}

func (d FileDestination) String() string { return d.Path }
