package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DirectorySettings describes where the person directory is read from.
type DirectorySettings struct {
	// Mode selects the source: SourceModeLocal or SourceModeWeb.
	Mode string `yaml:"mode"`
	// Path is the absolute path to a .vcf file (local mode).
	Path string `yaml:"path,omitempty"`
	// URL is the CardDAV/WebDAV export endpoint (web mode).
	URL string `yaml:"url,omitempty"`
	// Username for HTTP Basic Auth. The password is read from the OS
	// keyring under KeyringService, never from this file.
	Username string `yaml:"username,omitempty"`
}

// Settings is the top-level daemon configuration, loaded from YAML.
type Settings struct {
	Directory DirectorySettings `yaml:"directory"`

	// StorePath is the SQLite calendar store location.
	StorePath string `yaml:"store_path"`

	// HorizonPast/HorizonFuture are the expanded year window bounds
	// around the current year.
	HorizonPast   int `yaml:"horizon_past"`
	HorizonFuture int `yaml:"horizon_future"`

	// LeapPolicy decides what a Feb 29 birthday becomes in a non-leap
	// year: LeapPolicyFeb28 (default) or LeapPolicySkip.
	LeapPolicy string `yaml:"leap_policy"`

	// ReminderMinutes is the default reminder template, as non-negative
	// offsets in minutes before the event start.
	ReminderMinutes []int `yaml:"reminder_minutes"`

	// BatchCeiling caps the operation count of one atomic store apply.
	BatchCeiling int `yaml:"batch_ceiling"`

	// SyncCron is a cron-style schedule for periodic full syncs
	// (e.g. "@hourly" or "0 */6 * * *").
	SyncCron string `yaml:"sync_cron"`

	// FeedPort is the localhost port of the read-only ICS feed.
	FeedPort string `yaml:"feed_port"`
}

// DefaultSettings returns an in-memory default configuration.
func DefaultSettings() *Settings {
	return &Settings{
		Directory: DirectorySettings{
			Mode: SourceModeLocal,
		},
		StorePath:       DefaultStoreFile,
		HorizonPast:     DefaultHorizonPast,
		HorizonFuture:   DefaultHorizonFuture,
		LeapPolicy:      LeapPolicyFeb28,
		ReminderMinutes: append([]int(nil), DefaultReminderMinutes...),
		BatchCeiling:    DefaultBatchCeiling,
		SyncCron:        DefaultSyncCron,
		FeedPort:        DefaultPort,
	}
}

// Normalize fills in missing or zero values so that partially-filled
// settings files still behave correctly.
func (s *Settings) Normalize() {
	if s.Directory.Mode == "" {
		s.Directory.Mode = SourceModeLocal
	}
	if s.StorePath == "" {
		s.StorePath = DefaultStoreFile
	}
	if s.HorizonPast < 0 {
		s.HorizonPast = DefaultHorizonPast
	}
	if s.HorizonFuture <= 0 {
		s.HorizonFuture = DefaultHorizonFuture
	}
	switch s.LeapPolicy {
	case LeapPolicyFeb28, LeapPolicySkip:
	default:
		s.LeapPolicy = LeapPolicyFeb28
	}
	if len(s.ReminderMinutes) == 0 {
		s.ReminderMinutes = append([]int(nil), DefaultReminderMinutes...)
	}
	if s.BatchCeiling <= 0 {
		s.BatchCeiling = DefaultBatchCeiling
	}
	if s.SyncCron == "" {
		s.SyncCron = DefaultSyncCron
	}
	if s.FeedPort == "" {
		s.FeedPort = DefaultPort
	}
}

// Validate rejects settings that Normalize cannot repair.
func (s *Settings) Validate() error {
	switch s.Directory.Mode {
	case SourceModeLocal:
		if s.Directory.Path == "" {
			return errors.New(ErrLocalPathEmpty)
		}
	case SourceModeWeb:
		if s.Directory.URL == "" {
			return errors.New(ErrWebURLEmpty)
		}
	default:
		return fmt.Errorf("%s: %q", ErrModeUnsupport, s.Directory.Mode)
	}
	for _, m := range s.ReminderMinutes {
		if m < 0 {
			return fmt.Errorf("%s: negative reminder offset %d", ErrSettingsInvalid, m)
		}
	}
	return nil
}

// LoadSettings loads the YAML settings file. A missing file is created
// with defaults and 0600 permissions, matching first-run behavior.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New(ErrSettingsPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s := DefaultSettings()
			if err := SaveSettings(path, s); err != nil {
				return s, err
			}
			return s, nil
		}
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Normalize()
	return &s, nil
}

// SaveSettings writes the settings to disk atomically (temp file + rename)
// with owner-only permissions.
func SaveSettings(path string, s *Settings) error {
	if path == "" {
		return errors.New(ErrSettingsPath)
	}
	if s == nil {
		return errors.New(ErrSettingsInvalid)
	}
	s.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermUserRWX); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".birthday-sync-settings-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, FilePermUserRW); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
