package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, SourceModeLocal, s.Directory.Mode)
	assert.Equal(t, DefaultHorizonPast, s.HorizonPast)
	assert.Equal(t, DefaultHorizonFuture, s.HorizonFuture)
	assert.Equal(t, LeapPolicyFeb28, s.LeapPolicy)
	assert.Equal(t, DefaultReminderMinutes, s.ReminderMinutes)
	assert.Equal(t, DefaultBatchCeiling, s.BatchCeiling)
	assert.Equal(t, DefaultSyncCron, s.SyncCron)
	assert.Equal(t, DefaultPort, s.FeedPort)
}

func TestNormalize_FillsZeroValues(t *testing.T) {
	s := &Settings{}
	s.Normalize()

	assert.Equal(t, SourceModeLocal, s.Directory.Mode)
	assert.Equal(t, DefaultStoreFile, s.StorePath)
	assert.Equal(t, DefaultHorizonFuture, s.HorizonFuture)
	assert.Equal(t, LeapPolicyFeb28, s.LeapPolicy)
	assert.Equal(t, DefaultReminderMinutes, s.ReminderMinutes)
	assert.Equal(t, DefaultBatchCeiling, s.BatchCeiling)
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	s := &Settings{
		HorizonPast:     3,
		HorizonFuture:   5,
		LeapPolicy:      LeapPolicySkip,
		ReminderMinutes: []int{60},
		BatchCeiling:    50,
	}
	s.Normalize()

	assert.Equal(t, 3, s.HorizonPast)
	assert.Equal(t, 5, s.HorizonFuture)
	assert.Equal(t, LeapPolicySkip, s.LeapPolicy)
	assert.Equal(t, []int{60}, s.ReminderMinutes)
	assert.Equal(t, 50, s.BatchCeiling)

	// HorizonPast of zero is valid: no past years, future only.
	s = &Settings{HorizonPast: 0}
	s.Normalize()
	assert.Equal(t, 0, s.HorizonPast)
}

func TestNormalize_RepairsUnknownLeapPolicy(t *testing.T) {
	s := &Settings{LeapPolicy: "mar01"}
	s.Normalize()
	assert.Equal(t, LeapPolicyFeb28, s.LeapPolicy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"LocalWithPath", func(s *Settings) {
			s.Directory.Path = "/tmp/contacts.vcf"
		}, false},
		{"LocalWithoutPath", func(s *Settings) {
			s.Directory.Path = ""
		}, true},
		{"WebWithURL", func(s *Settings) {
			s.Directory.Mode = SourceModeWeb
			s.Directory.URL = "https://example.com/contacts.vcf"
		}, false},
		{"WebWithoutURL", func(s *Settings) {
			s.Directory.Mode = SourceModeWeb
		}, true},
		{"UnknownMode", func(s *Settings) {
			s.Directory.Mode = "carrier-pigeon"
		}, true},
		{"NegativeReminder", func(s *Settings) {
			s.Directory.Path = "/tmp/contacts.vcf"
			s.ReminderMinutes = []int{0, -5}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadSettings_FirstRunCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "settings.yaml")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	// The file exists now, owner-only.
	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(FilePermUserRW), info.Mode().Perm())
	}
}

func TestLoadSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	want := DefaultSettings()
	want.Directory.Mode = SourceModeWeb
	want.Directory.URL = "https://example.com/contacts.vcf"
	want.Directory.Username = "john"
	want.HorizonFuture = 4
	want.LeapPolicy = LeapPolicySkip
	want.ReminderMinutes = []int{0, 60, 1440}

	require.NoError(t, SaveSettings(path, want))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSettings_PartialFileNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	partial := "directory:\n  mode: local\n  path: /tmp/contacts.vcf\n"
	require.NoError(t, os.WriteFile(path, []byte(partial), 0o600))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/contacts.vcf", s.Directory.Path)
	assert.Equal(t, DefaultBatchCeiling, s.BatchCeiling, "missing fields get defaults")
	assert.Equal(t, DefaultReminderMinutes, s.ReminderMinutes)
}

func TestLoadSettings_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestSaveSettings_RequiresPathAndValue(t *testing.T) {
	assert.Error(t, SaveSettings("", DefaultSettings()))
	assert.Error(t, SaveSettings(filepath.Join(t.TempDir(), "x.yaml"), nil))
	_, err := LoadSettings("")
	assert.Error(t, err)
}
