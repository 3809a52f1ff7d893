package objstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Backend   Backend `yaml:"backend"`
	Verbose   bool    `yaml:"verbose"`
	IsTesting bool    `yaml:"testing"`

	// MmapSize overrides bolt's initial mmap size; accepts values like "64MB".
	MmapSize datasize.ByteSize `yaml:"mmap_size"`

	// IdentityCacheSize bounds how many stored or loaded objects are
	// remembered by identity. Negative disables the cache.
	IdentityCacheSize int `yaml:"identity_cache_size"`

	Logf func(format string, args ...any) `yaml:"-"`
}

// LoadOptions reads Options from a YAML file. Unknown keys are an error.
func LoadOptions(path string) (Options, error) {
	var opt Options
	raw, err := os.ReadFile(path)
	if err != nil {
		return opt, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&opt); err != nil && !errors.Is(err, io.EOF) {
		return opt, fmt.Errorf("objstore: %s: %w", path, err)
	}
	return opt, nil
}

func (opt *Options) setDefaults() {
	if opt.Backend == "" {
		opt.Backend = BackendBolt
	}
	if opt.IdentityCacheSize == 0 {
		opt.IdentityCacheSize = defaultIdentityCacheSize
	}
	if opt.Logf == nil {
		opt.Logf = slogf
	}
}

func slogf(format string, args ...any) {
	slog.Info(fmt.Sprintf(format, args...))
}
