package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/emersion/go-vcard"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/engine"
)

// Directory is the read-only person source the orchestrator consumes.
type Directory interface {
	// ListPeopleWithBirthday returns every person carrying a valid
	// birth date. People with malformed dates are skipped and logged,
	// never fatal to the listing.
	ListPeopleWithBirthday(ctx context.Context) ([]Person, error)

	// GetPerson resolves a single person by key.
	GetPerson(ctx context.Context, key string) (Person, error)
}

// Source selects where the vCard stream comes from.
type Source struct {
	Mode      string // config.SourceModeLocal or config.SourceModeWeb
	LocalPath string // Absolute path to the .vcf file
	WebURL    string // CardDAV or WebDAV URL
	WebUser   string // HTTP Basic Auth Username
	WebPass   string // HTTP Basic Auth Password
}

// VCardDirectory reads people from a vCard stream, local or remote.
type VCardDirectory struct {
	Source  Source
	Fetcher VCardFetcher // required in web mode
}

var _ Directory = (*VCardDirectory)(nil)

// ListPeopleWithBirthday decodes the whole stream, keeping only cards
// with a parseable BDAY.
func (d *VCardDirectory) ListPeopleWithBirthday(ctx context.Context) ([]Person, error) {
	people, err := d.listAll(ctx)
	if err != nil {
		return nil, err
	}
	out := people[:0]
	for _, p := range people {
		if p.HasBirthday() {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPerson re-reads the source and resolves one key. The vCard backend
// has no indexed lookup, so this is a filtered full read.
func (d *VCardDirectory) GetPerson(ctx context.Context, key string) (Person, error) {
	people, err := d.listAll(ctx)
	if err != nil {
		return Person{}, err
	}
	for _, p := range people {
		if p.Key == key {
			return p, nil
		}
	}
	return Person{}, fmt.Errorf("%s: %q", config.ErrUnknownPerson, key)
}

// listAll streams and decodes every card. Malformed cards and dates are
// skipped with a log entry to maximize data recovery.
func (d *VCardDirectory) listAll(ctx context.Context) ([]Person, error) {
	reader, err := d.acquireStream(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}
	// Best effort close. Errors in Close() for read-only streams are rarely actionable here.
	defer func() { _ = reader.Close() }()

	decoder := vcard.NewDecoder(reader)
	var people []Person

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompDirectory,
				config.LogKeyError, err)
			continue
		}

		people = append(people, personFromCard(card))
	}

	return people, nil
}

// acquireStream opens the appropriate data source based on configuration.
func (d *VCardDirectory) acquireStream(ctx context.Context) (io.ReadCloser, error) {
	switch d.Source.Mode {
	case config.SourceModeLocal:
		if d.Source.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(d.Source.LocalPath)
	case config.SourceModeWeb:
		if d.Source.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		if d.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return d.Fetcher.Fetch(ctx, d.Source.WebURL, d.Source.WebUser, d.Source.WebPass)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, d.Source.Mode)
	}
}

// personFromCard maps one decoded card to a Person.
// Name strategy: FN (Formatted) > N (Structured) > Fallback.
func personFromCard(card vcard.Card) Person {
	name := config.FallbackName
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		name = fn.Value
	} else if n := card.Get(config.VCardN); n != nil && n.Value != "" {
		name = n.Value
	}

	p := Person{Name: name}

	if bday := card.Get(config.VCardBDAY); bday != nil && bday.Value != "" {
		if parsed, err := engine.ParseBirthDate(bday.Value); err == nil {
			p.Birthday = &parsed
		} else {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompDirectory,
				config.LogKeyName, name,
				config.LogKeyValue, bday.Value)
		}
	}

	if uid := card.Get(config.VCardUID); uid != nil && uid.Value != "" {
		p.Key = uid.Value
	} else if p.Birthday != nil {
		p.Key = derivedKey(name, *p.Birthday)
	} else {
		p.Key = derivedKey(name, engine.BirthDate{})
	}

	if rem := card.Get(config.VCardXReminder); rem != nil && rem.Value != "" {
		p.ReminderMinutes = parseReminderOverride(name, rem.Value)
	}

	return p
}

// parseReminderOverride decodes a comma-separated minute list. Invalid
// entries disable the override entirely rather than applying half of it.
func parseReminderOverride(name, value string) []int {
	parts := strings.Split(value, ",")
	minutes := make([]int, 0, len(parts))
	for _, part := range parts {
		m, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || m < 0 {
			slog.Warn(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompDirectory,
				config.LogKeyName, name,
				config.LogKeyValue, value)
			return nil
		}
		minutes = append(minutes, m)
	}
	return minutes
}
