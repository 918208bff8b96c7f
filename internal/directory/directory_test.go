package directory_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/directory"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockFetcher simulates the network layer for unit tests using `testify/mock`.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error) {
	args := m.Called(ctx, url, user, pass)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func writeTempVCF(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "test_vcard_*.vcf")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func localDirectory(t *testing.T, content string) *directory.VCardDirectory {
	t.Helper()
	return &directory.VCardDirectory{
		Source: directory.Source{
			Mode:      config.SourceModeLocal,
			LocalPath: writeTempVCF(t, content),
		},
	}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestListPeopleWithBirthday_Local(t *testing.T) {
	vcardContent := `BEGIN:VCARD
VERSION:4.0
FN:John Doe
BDAY:2000-01-01
END:VCARD
BEGIN:VCARD
VERSION:4.0
FN:No Birthday
END:VCARD
BEGIN:VCARD
VERSION:4.0
FN:Bad Date
BDAY:not-a-date
END:VCARD`

	d := localDirectory(t, vcardContent)
	people, err := d.ListPeopleWithBirthday(context.Background())
	require.NoError(t, err)

	require.Len(t, people, 1, "cards without a parseable BDAY are filtered out")
	assert.Equal(t, "John Doe", people[0].Name)
	require.NotNil(t, people[0].Birthday)
	assert.Equal(t, 2000, people[0].Birthday.Year)
	assert.True(t, people[0].Birthday.YearKnown)
}

func TestListPeopleWithBirthday_YearlessDate(t *testing.T) {
	d := localDirectory(t, `BEGIN:VCARD
VERSION:4.0
FN:Jane Roe
BDAY:--12-31
END:VCARD`)

	people, err := d.ListPeopleWithBirthday(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.False(t, people[0].Birthday.YearKnown)
	assert.Equal(t, 31, people[0].Birthday.Day)
}

func TestPersonKey_UIDPreferredOverDerived(t *testing.T) {
	d := localDirectory(t, `BEGIN:VCARD
VERSION:4.0
UID:urn:uuid:1234
FN:John Doe
BDAY:2000-01-01
END:VCARD
BEGIN:VCARD
VERSION:4.0
FN:Jane Roe
BDAY:2000-01-01
END:VCARD`)

	people, err := d.ListPeopleWithBirthday(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 2)

	assert.Equal(t, "urn:uuid:1234", people[0].Key)
	assert.NotEmpty(t, people[1].Key, "missing UID falls back to a derived key")
	assert.NotEqual(t, people[0].Key, people[1].Key)

	// Derived keys are stable across reads, so narrow passes can find
	// the same person again.
	again, err := d.ListPeopleWithBirthday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, people[1].Key, again[1].Key)
}

func TestReminderOverride(t *testing.T) {
	d := localDirectory(t, `BEGIN:VCARD
VERSION:4.0
FN:John Doe
BDAY:2000-01-01
X-BIRTHDAY-REMINDERS:0, 60,1440
END:VCARD
BEGIN:VCARD
VERSION:4.0
FN:Jane Roe
BDAY:2000-01-01
X-BIRTHDAY-REMINDERS:10,nonsense
END:VCARD`)

	people, err := d.ListPeopleWithBirthday(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 2)

	assert.Equal(t, []int{0, 60, 1440}, people[0].ReminderMinutes)
	assert.Nil(t, people[1].ReminderMinutes, "an invalid entry disables the whole override")
}

func TestGetPerson(t *testing.T) {
	d := localDirectory(t, `BEGIN:VCARD
VERSION:4.0
UID:key-1
FN:John Doe
BDAY:2000-01-01
END:VCARD`)

	p, err := d.GetPerson(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", p.Name)

	_, err = d.GetPerson(context.Background(), "no-such-key")
	assert.Error(t, err)
}

func TestListPeople_Web(t *testing.T) {
	vcardContent := `BEGIN:VCARD
VERSION:3.0
FN:Leap Baby
BDAY:2000-02-29
END:VCARD`

	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, "http://example.com/contacts.vcf", "user", "pass").
		Return(io.NopCloser(strings.NewReader(vcardContent)), nil)

	d := &directory.VCardDirectory{
		Source: directory.Source{
			Mode:    config.SourceModeWeb,
			WebURL:  "http://example.com/contacts.vcf",
			WebUser: "user",
			WebPass: "pass",
		},
		Fetcher: mockFetcher,
	}

	people, err := d.ListPeopleWithBirthday(context.Background())
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Leap Baby", people[0].Name)
	assert.True(t, people[0].Birthday.IsLeapDay())

	mockFetcher.AssertExpectations(t)
}

func TestListPeople_SourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		source directory.Source
	}{
		{"UnsupportedMode", directory.Source{Mode: "carrier-pigeon"}},
		{"LocalWithoutPath", directory.Source{Mode: config.SourceModeLocal}},
		{"WebWithoutURL", directory.Source{Mode: config.SourceModeWeb}},
		{"WebWithoutFetcher", directory.Source{Mode: config.SourceModeWeb, WebURL: "http://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &directory.VCardDirectory{Source: tt.source}
			_, err := d.ListPeopleWithBirthday(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestListPeople_ContextCancellation(t *testing.T) {
	d := localDirectory(t, `BEGIN:VCARD
VERSION:4.0
FN:John Doe
BDAY:2000-01-01
END:VCARD`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.ListPeopleWithBirthday(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
