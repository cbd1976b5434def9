// Package config loads application settings: embedded defaults overlaid by
// shadowcore/config.yml in the user config directory.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SampleRate  int      `yaml:"sampleRate"`
	BPM         float64  `yaml:"bpm"`
	StepsPerBar int      `yaml:"stepsPerBar"`
	Volume      float64  `yaml:"volume"`
	MIDIOut     string   `yaml:"midiOut"`
	Peers       []string `yaml:"peers"`
	RecordDir   string   `yaml:"recordDir"`
}

//go:embed config.yml
var defaultYAML []byte

// Default returns the embedded defaults.
func Default() Config {
	var c Config
	if err := decode(bytes.NewReader(defaultYAML), &c); err != nil {
		panic(fmt.Errorf("config: embedded defaults: %w", err))
	}
	return c
}

// UserPath returns the per-user config file location.
func UserPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "shadowcore", "config.yml"), nil
}

// Load overlays the file at path on the defaults. An empty path means
// UserPath. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		p, err := UserPath()
		if err != nil {
			return c, nil
		}
		path = p
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := Read(f, &c); err != nil {
		return Default(), fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Read overlays YAML from r on c and validates the result.
func Read(r io.Reader, c *Config) error {
	if err := decode(r, c); err != nil {
		return err
	}
	return c.Validate()
}

func decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sampleRate %d must be positive", c.SampleRate)
	case c.BPM <= 0:
		return fmt.Errorf("bpm %g must be positive", c.BPM)
	case c.StepsPerBar <= 0:
		return fmt.Errorf("stepsPerBar %d must be positive", c.StepsPerBar)
	case c.Volume < 0 || c.Volume > 1:
		return fmt.Errorf("volume %g outside [0, 1]", c.Volume)
	}
	return nil
}
