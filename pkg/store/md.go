package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"tinylsm/pkg/dberrors"
	"tinylsm/pkg/fsutil"
)

const (
	optionsFile   = "OPTIONS"
	formatVersion = 1
)

// MD is the store metadata kept next to the log. The widths are fixed for the
// lifetime of a store and checked on every open.
type MD struct {
	FormatVersion int `yaml:"format_version"`
	KeySize       int `yaml:"key_size"`
	ValueSize     int `yaml:"value_size"`
}

// ReadMD loads the metadata of the store at root.
func ReadMD(root string) (MD, error) {
	var md MD
	data, err := os.ReadFile(filepath.Join(root, optionsFile))
	if err != nil {
		return md, err
	}
	if err := yaml.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("failed to parse %s: %w", optionsFile, err)
	}
	return md, nil
}

func (s *Store) checkLayout() error {
	md, err := ReadMD(s.path)
	if errors.Is(err, os.ErrNotExist) {
		md = MD{
			FormatVersion: formatVersion,
			KeySize:       s.layout.KeySize,
			ValueSize:     s.layout.ValueSize,
		}
		data, err := yaml.Marshal(md)
		if err != nil {
			return err
		}
		return fsutil.WriteFileAtomic(filepath.Join(s.path, optionsFile), data)
	}
	if err != nil {
		return err
	}

	if md.FormatVersion != formatVersion {
		return fmt.Errorf("%w: %d", ErrFormatVersion, md.FormatVersion)
	}
	if md.KeySize != s.layout.KeySize || md.ValueSize != s.layout.ValueSize {
		return fmt.Errorf("%w: store has key_size=%d value_size=%d, opened with key_size=%d value_size=%d",
			dberrors.ErrLayoutMismatch, md.KeySize, md.ValueSize, s.layout.KeySize, s.layout.ValueSize)
	}
	return nil
}
