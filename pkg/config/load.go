package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Load reads a YAML config file. A missing file at an optional path yields the zero config,
// so a run with only CLI flags still works. Defaults are applied later by Validate.
func Load(path string, optional bool) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("%w: reading config file '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}
