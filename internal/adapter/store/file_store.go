package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/port"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrCorruptState = errors.New("corrupt state file")

type stateFile struct {
	Version int                            `yaml:"version"`
	Sensors map[string]port.EnergySnapshot `yaml:"sensors"`
}

// FileEnergyStore keeps every snapshot in a single YAML document.
// Writes go to a temporary file which is then renamed over the original.
// A file that cannot be decoded is moved to <path>.corrupt-<timestamp> before it is replaced.
type FileEnergyStore struct {
	mu     sync.Mutex
	fs     afero.Fs
	path   string
	now    func() time.Time
	logger *zap.Logger
}

func NewFileEnergyStore(fs afero.Fs, path string, logger *zap.Logger) *FileEnergyStore {
	return &FileEnergyStore{
		fs:     fs,
		path:   path,
		now:    time.Now,
		logger: logger,
	}
}

func NewOsFileEnergyStore(path string, logger *zap.Logger) *FileEnergyStore {
	return NewFileEnergyStore(afero.NewOsFs(), path, logger)
}

func (s *FileEnergyStore) Load(sensorId string) (*port.EnergySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return nil, err
	}
	snapshot, ok := state.Sensors[sensorId]
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

func (s *FileEnergyStore) Save(sensorId string, snapshot port.EnergySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if errors.Is(err, ErrCorruptState) {
		backup, berr := s.backupCorrupt()
		if berr != nil {
			return fmt.Errorf("keep corrupt state: %w", berr)
		}
		s.logger.Warn("state store: corrupt state moved aside", zap.String("file", s.path), zap.String("backup", backup), zap.Error(err))
		state = &stateFile{}
	} else if err != nil {
		return err
	}
	if state.Sensors == nil {
		state.Sensors = map[string]port.EnergySnapshot{}
	}
	state.Version = 1
	state.Sensors[sensorId] = snapshot

	payload, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (s *FileEnergyStore) read() (*stateFile, error) {
	payload, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &stateFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var state stateFile
	if err := yaml.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return &state, nil
}

func (s *FileEnergyStore) backupCorrupt() (string, error) {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405"))
	if err := s.fs.Rename(s.path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

// ensure interface compliance
var _ port.EnergyStore = (*FileEnergyStore)(nil)
