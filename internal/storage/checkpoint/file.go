package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileSink replaces a file wholesale on every write. atomic.WriteFile stages
// the data in a synced temporary file next to Path and renames it over Path,
// so readers never see a torn snapshot.
type FileSink struct {
	Path string
}

// Write implements Sink.
func (s FileSink) Write(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	if err := atomic.WriteFile(s.Path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
