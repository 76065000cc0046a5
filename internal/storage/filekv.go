package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"
	"time"

	"shieldvpn/pkg/jsonhelper"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const lockRetryDelay = 10 * time.Millisecond

// FileKV keeps the whole store in one JSON document that is rewritten
// atomically on every mutation. Mutations hold an advisory lock on
// <path>.lock and start from the file's current content, so processes
// sharing the file do not drop each other's keys.
type FileKV struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	log    *zap.SugaredLogger
	values map[string]string
	closed bool
}

// OpenFileKV loads path. A malformed file is copied aside to <path>.bak and
// the store starts empty.
func OpenFileKV(path string, log *zap.SugaredLogger) (*FileKV, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	kv := &FileKV{path: path, lock: flock.New(path + ".lock"), log: log, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return kv, nil
	case err != nil:
		return nil, err
	}

	values, err := jsonhelper.Decode[map[string]string](data)
	if err != nil {
		backup := path + ".bak"
		log.Warnw("state file is malformed, starting empty", "path", path, "backup", backup, "error", err)
		if err := writeFileAtomic(backup, data, 0o600); err != nil {
			log.Warnw("couldn't back up malformed state file", "error", err)
		}
		return kv, nil
	}
	if values != nil {
		kv.values = values
	}
	return kv, nil
}

func (kv *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.closed {
		return "", false, ErrClosed
	}
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *FileKV) Set(ctx context.Context, key, value string) error {
	return kv.mutate(ctx, func(m map[string]string) { m[key] = value })
}

func (kv *FileKV) Delete(ctx context.Context, key string) error {
	return kv.mutate(ctx, func(m map[string]string) { delete(m, key) })
}

// mutate applies fn to a copy of the file's current content and swaps it
// in only once the file is written.
func (kv *FileKV) mutate(ctx context.Context, fn func(map[string]string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.closed {
		return ErrClosed
	}

	locked, err := kv.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock state file: %w", ctx.Err())
	}
	defer func() {
		if err := kv.lock.Unlock(); err != nil {
			kv.log.Warnw("couldn't release state file lock", "error", err)
		}
	}()

	next := maps.Clone(kv.reload())
	fn(next)

	data, err := jsonhelper.EncodeIndent(next)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := writeFileAtomic(kv.path, data, 0o600); err != nil {
		return err
	}

	kv.values = next
	return nil
}

// reload refreshes the cache from disk and returns it. A missing file is an
// empty store; an unreadable or malformed one leaves the cache as it was.
func (kv *FileKV) reload() map[string]string {
	data, err := os.ReadFile(kv.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		kv.values = make(map[string]string)
		return kv.values
	case err != nil:
		kv.log.Warnw("couldn't re-read state file", "path", kv.path, "error", err)
		return kv.values
	}

	values, err := jsonhelper.Decode[map[string]string](data)
	if err != nil {
		kv.log.Warnw("state file is malformed, keeping cached values", "path", kv.path, "error", err)
		return kv.values
	}
	if values == nil {
		values = make(map[string]string)
	}
	kv.values = values
	return kv.values
}

func (kv *FileKV) Close() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.closed = true
	return nil
}
