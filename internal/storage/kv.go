package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// KV is a durable string key/value store. A failed Set leaves the previous
// value in place.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// OpenKV opens the driver selected in the configuration.
func OpenKV(driver string, s *AppStorage, log *zap.SugaredLogger) (KV, error) {
	switch driver {
	case "", "file":
		return OpenFileKV(s.StateFilePath(), log)
	case "sqlite":
		return OpenSQLKV(s.DBPath())
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var ErrClosed = errors.New("storage closed")
