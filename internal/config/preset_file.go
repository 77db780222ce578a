package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// presetYAML is the on-disk shape of an operator-provided throttle preset
// file. Fields mirror ThrottleProfilePreset one-to-one.
type presetYAML struct {
	Profiles []struct {
		Name                  string `yaml:"name"`
		RequestsPerMinute     int    `yaml:"requestsPerMinute"`
		DailyBudget           *int   `yaml:"dailyBudget"`
		BatchSize             int    `yaml:"batchSize"`
		BatchCooldownSeconds  int    `yaml:"batchCooldownSeconds"`
		RateLimitPauseSeconds int    `yaml:"rateLimitPauseSeconds"`
		IsDefault             bool   `yaml:"isDefault"`
	} `yaml:"profiles"`
}

// LoadThrottlePresetFile reads operator-tuned throttle presets from a YAML
// file, replacing the built-in set. At most one profile may be marked
// default, and every profile needs a positive per-minute budget.
func LoadThrottlePresetFile(path string) ([]ThrottleProfilePreset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("op=config.loadThrottlePresetFile: file not found: %s", path)
		}
		return nil, fmt.Errorf("op=config.loadThrottlePresetFile: %w", err)
	}

	var doc presetYAML
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("op=config.loadThrottlePresetFile.unmarshal: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("op=config.loadThrottlePresetFile: no profiles in %s", path)
	}

	defaults := 0
	out := make([]ThrottleProfilePreset, 0, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if p.Name == "" || p.RequestsPerMinute < 1 {
			return nil, fmt.Errorf("op=config.loadThrottlePresetFile: profile %q needs a name and requestsPerMinute >= 1", p.Name)
		}
		if p.IsDefault {
			defaults++
		}
		out = append(out, ThrottleProfilePreset{
			Name:                  p.Name,
			RequestsPerMinute:     p.RequestsPerMinute,
			DailyBudget:           p.DailyBudget,
			BatchSize:             p.BatchSize,
			BatchCooldownSeconds:  p.BatchCooldownSeconds,
			RateLimitPauseSeconds: p.RateLimitPauseSeconds,
			IsDefault:             p.IsDefault,
		})
	}
	if defaults > 1 {
		return nil, fmt.Errorf("op=config.loadThrottlePresetFile: %d profiles marked default, want at most 1", defaults)
	}
	return out, nil
}

// ThrottlePresets returns the preset set for this process: the operator's
// preset file when configured, else the built-in three.
func (c Config) ThrottlePresets() ([]ThrottleProfilePreset, error) {
	if c.ThrottlePresetFile == "" {
		return BuiltinThrottlePresets(), nil
	}
	return LoadThrottlePresetFile(c.ThrottlePresetFile)
}
