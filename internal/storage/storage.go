package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "shieldvpn"

// AppStorage resolves the on-disk layout used by the client.
type AppStorage struct {
	baseDir    string
	configPath string
	dbPath     string
	tunnelPath string
}

// NewAppStorage prepares the directory tree under baseDir, or under the
// user config dir when baseDir is empty.
func NewAppStorage(baseDir string) (*AppStorage, error) {
	if baseDir == "" {
		userDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(userDir, appDirName)
	}

	s := &AppStorage{
		baseDir:    baseDir,
		configPath: filepath.Join(baseDir, "config"),
		dbPath:     filepath.Join(baseDir, "db"),
		tunnelPath: filepath.Join(baseDir, "tunnel"),
	}

	for _, dir := range []string{s.configPath, s.dbPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// tunnel configs hold private keys
	if err := os.MkdirAll(s.tunnelPath, 0o700); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *AppStorage) BaseDir() string {
	return s.baseDir
}

func (s *AppStorage) ConfigPath() string {
	return s.configPath
}

func (s *AppStorage) DBPath() string {
	return filepath.Join(s.dbPath, "shieldvpn.db")
}

func (s *AppStorage) TunnelPath() string {
	return s.tunnelPath
}

func (s *AppStorage) StateFilePath() string {
	return filepath.Join(s.configPath, "state.json")
}

func (s *AppStorage) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteFileAtomic replaces path with data so that readers observe either
// the old or the new content, never a truncated file.
func (s *AppStorage) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeFileAtomic(path, data, perm)
}

func (s *AppStorage) CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
