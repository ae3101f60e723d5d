// Package modelstore persists trained model sets to a local directory.
package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/regression"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// File names inside a model set directory. CurrentFile sits in the store
// root and names the set directory Load reads from.
const (
	BoostedFile  = "boosted_model.json"
	StackingFile = "stacking_model.json"
	ManifestFile = "manifest.json"
	CurrentFile  = "current"

	setPrefix = "set-"
)

// ErrNotFound is returned by Load when no saved model set exists.
var ErrNotFound = errors.New("no saved models")

// Manifest describes a saved model set.
type Manifest struct {
	Version           string                    `json:"version"`
	TrainedAt         time.Time                 `json:"trained_at"`
	Features          []string                  `json:"features"`
	Metrics           map[string]models.Metrics `json:"metrics"`
	FeatureImportance map[string]float64        `json:"feature_importance"`
}

// Store reads and writes model sets under Dir.
type Store struct {
	Dir string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Save writes both models and the manifest into a fresh set directory and then
// repoints CurrentFile at it. Until that rename succeeds Load keeps returning
// the previous set.
func (s *Store) Save(set *registry.ModelSet) error {
	boosted, ok := set.Boosted.(*regression.GradientBoosting)
	if !ok {
		return fmt.Errorf("save: boosted model has unsupported type %T", set.Boosted)
	}
	stacking, ok := set.Stacking.(*regression.Stacking)
	if !ok {
		return fmt.Errorf("save: stacking model has unsupported type %T", set.Stacking)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	setDir, err := os.MkdirTemp(s.Dir, setPrefix)
	if err != nil {
		return fmt.Errorf("create set dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(setDir)
		}
	}()

	manifest := Manifest{
		Version:           set.Version,
		TrainedAt:         set.TrainedAt,
		Features:          features.FeatureNames,
		Metrics:           set.Metrics,
		FeatureImportance: set.FeatureImportance,
	}
	files := []struct {
		name string
		v    interface{}
	}{
		{BoostedFile, boosted},
		{StackingFile, stacking},
		{ManifestFile, manifest},
	}
	for _, f := range files {
		data, err := json.Marshal(f.v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", f.name, err)
		}
		if err := writeAtomic(setDir, f.name, data); err != nil {
			return err
		}
	}

	name := filepath.Base(setDir)
	if err := writeAtomic(s.Dir, CurrentFile, []byte(name+"\n")); err != nil {
		return err
	}
	committed = true

	s.prune(name)
	return nil
}

// Load reads the set CurrentFile points at.
func (s *Store) Load() (*registry.ModelSet, error) {
	setDir, err := s.current()
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := readJSON(setDir, ManifestFile, &manifest); err != nil {
		return nil, err
	}
	if err := checkFeatures(manifest.Features); err != nil {
		return nil, err
	}

	boosted := &regression.GradientBoosting{}
	if err := readJSON(setDir, BoostedFile, boosted); err != nil {
		return nil, err
	}
	stacking := &regression.Stacking{}
	if err := readJSON(setDir, StackingFile, stacking); err != nil {
		return nil, err
	}
	if len(boosted.Trees) == 0 || stacking.Final == nil || stacking.Ridge == nil || stacking.Forest == nil {
		return nil, errors.New("load: saved models are incomplete")
	}

	return &registry.ModelSet{
		Version:           manifest.Version,
		TrainedAt:         manifest.TrainedAt,
		Boosted:           boosted,
		Stacking:          stacking,
		Metrics:           manifest.Metrics,
		FeatureImportance: manifest.FeatureImportance,
	}, nil
}

func (s *Store) current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, CurrentFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read %s: %w", CurrentFile, err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" || name != filepath.Base(name) || !strings.HasPrefix(name, setPrefix) {
		return "", fmt.Errorf("%s holds invalid set name %q", CurrentFile, name)
	}
	return filepath.Join(s.Dir, name), nil
}

// prune removes set directories other than keep. Failures are left for the
// next save.
func (s *Store) prune(keep string) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() != keep && strings.HasPrefix(e.Name(), setPrefix) {
			os.RemoveAll(filepath.Join(s.Dir, e.Name()))
		}
	}
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func readJSON(dir, name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func checkFeatures(names []string) error {
	if len(names) != len(features.FeatureNames) {
		return fmt.Errorf("saved models use %d features, want %d", len(names), len(features.FeatureNames))
	}
	for i, n := range names {
		if n != features.FeatureNames[i] {
			return fmt.Errorf("saved feature %d is %s, want %s", i, n, features.FeatureNames[i])
		}
	}
	return nil
}
