package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at configpath over the defaults.
// An empty configpath means DefaultFile, which may be absent.
func Load(configpath string) (*Configuration, error) {
	explicit := configpath != ""
	if !explicit {
		configpath = DefaultFile
	}

	cfg := DefaultConfiguration()

	data, err := os.ReadFile(configpath)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			cfg.Root = "."
			return cfg, cfg.Validate()
		}
		return nil, eris.Wrapf(err, "could not access configuration file %s", configpath)
	}

	err = Decode(configpath, data, cfg)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(configpath)
	switch {
	case cfg.Root == "":
		cfg.Root = base
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(base, cfg.Root)
	}

	return cfg, cfg.Validate()
}

// Decode decodes data into cfg, picking YAML or JSON from the file extension.
func Decode(name string, data []byte, cfg *Configuration) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err := yaml.Unmarshal(data, cfg)
		if err != nil {
			return eris.Wrapf(err, "failed to decode %s", name)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err := dec.Decode(cfg)
		if err != nil {
			return eris.Wrapf(err, "failed to decode %s", name)
		}
	}
	return nil
}

func (c *Configuration) Validate() error {
	if c.Bases.Dist == "" {
		return eris.New("bases.dist must be set")
	}
	if c.Watch.Debounce != "" {
		d, err := time.ParseDuration(c.Watch.Debounce)
		if err != nil {
			return eris.Wrapf(err, "invalid watch.debounce %q", c.Watch.Debounce)
		}
		if d < 0 {
			return eris.Errorf("invalid watch.debounce %q", c.Watch.Debounce)
		}
	}
	return nil
}
