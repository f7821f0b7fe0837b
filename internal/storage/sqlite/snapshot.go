package sqlite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"modernc.org/sqlite"
)

type serializer interface {
	Serialize() ([]byte, error)
}

type restorer interface {
	NewRestore(srcURI string) (*sqlite.Backup, error)
}

// Snapshot serializes the whole database. The bytes are the same a backup of
// the database to disk would produce.
func (e *Engine) Snapshot(ctx context.Context) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var data []byte
	err = conn.Raw(func(driverConn any) error {
		s, ok := driverConn.(serializer)
		if !ok {
			return errors.New("sqlite driver does not support serialize")
		}
		data, err = s.Serialize()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return data, nil
}

// load copies the snapshot file at path into the in-memory database with the
// online backup API. The file is opened read-only and is never modified.
func (e *Engine) load(ctx context.Context, path string) error {
	uri, err := readOnlyURI(path)
	if err != nil {
		return err
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		r, ok := driverConn.(restorer)
		if !ok {
			return errors.New("sqlite driver does not support restore")
		}
		b, err := r.NewRestore(uri)
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		// Finish also closes the connection to the snapshot file.
		if _, err := b.Step(-1); err != nil {
			_ = b.Finish()
			return err
		}
		return b.Finish()
	})
}

func readOnlyURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}
	return u.String(), nil
}
