package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// preset is a named offset triple, the unit players actually share: one per
// weapon.
type preset struct {
	MoveX float64 `json:"move_x"`
	MoveY float64 `json:"move_y"`
	MoveZ float64 `json:"move_z"`
}

type uiSettings struct {
	MoveX        float64 `json:"move_x"`
	MoveY        float64 `json:"move_y"`
	MoveZ        float64 `json:"move_z"`
	IntervalMS   int     `json:"interval_ms"`
	CrouchScale  float64 `json:"crouch_scale"`
	Trigger      string  `json:"trigger"`
	Crouch       string  `json:"crouch"`
	Enabled      bool    `json:"enabled"`
	ActivePreset string  `json:"active_preset"`
}

func configFilePath(name string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return filepath.Join(".", ".fallen-recoil-"+name), nil
	}
	return filepath.Join(configDir, "fallen-recoil", name), nil
}

func uiSettingsPath() (string, error) {
	return configFilePath("settings.json")
}

func presetsPath() (string, error) {
	return configFilePath("presets.json")
}

func loadUISettings() (*uiSettings, error) {
	path, err := uiSettingsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cfg uiSettings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return &cfg, nil
}

func saveUISettings(cfg uiSettings) error {
	path, err := uiSettingsPath()
	if err != nil {
		return err
	}
	return writeJSONAtomic(path, cfg)
}

func loadPresets() (map[string]preset, error) {
	path, err := presetsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]preset{}, nil
		}
		return nil, err
	}

	presets := make(map[string]preset)
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse presets %s: %w", path, err)
	}
	return presets, nil
}

func savePresets(presets map[string]preset) error {
	path, err := presetsPath()
	if err != nil {
		return err
	}
	return writeJSONAtomic(path, presets)
}

func sortedPresetNames(presets map[string]preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// writeJSONAtomic writes via a temp file and rename so a crash mid-write
// never truncates the existing file.
func writeJSONAtomic(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to persist %s: %w", filepath.Base(path), err)
	}
	return nil
}
