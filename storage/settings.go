package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"firetunnel/typedef"
)

const (
	settingsFile = "settings.json"
	keybindsFile = "keybinds.json"
)

// LoadSettings reads settings.json over the defaults. A missing file is not an error.
func LoadSettings() (typedef.Settings, error) {
	s := typedef.DefaultSettings()
	if err := readJSON(settingsFile, &s); err != nil {
		return typedef.DefaultSettings(), err
	}
	typedef.NormalizeSettings(&s)
	return s, nil
}

// SaveSettings writes settings.json
func SaveSettings(s typedef.Settings) error {
	return writeJSON(settingsFile, s)
}

// LoadKeybinds reads keybinds.json, filling anything missing or invalid with defaults
func LoadKeybinds() (typedef.Keybinds, error) {
	k := typedef.DefaultKeybinds()
	if err := readJSON(keybindsFile, &k); err != nil {
		return typedef.DefaultKeybinds(), err
	}
	typedef.NormalizeKeybinds(&k)
	return k, nil
}

// SaveKeybinds writes keybinds.json
func SaveKeybinds(k typedef.Keybinds) error {
	return writeJSON(keybindsFile, k)
}

func readJSON(name string, v any) error {
	data, err := ReadDataFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteDataFile(name, data, 0o644)
}
