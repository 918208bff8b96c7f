// Package feed renders the synced calendar store as a read-only
// iCalendar subscription, so the reconciled events can be checked from
// any calendar client without touching the store directly.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-ical"

	"github.com/calorbit/birthday-sync/internal/config"
	"github.com/calorbit/birthday-sync/internal/engine"
	"github.com/calorbit/birthday-sync/internal/store"
)

// Renderer turns store contents into ICS bytes.
type Renderer struct {
	Reader store.Reader
	Clock  engine.Clock
}

// Render reads every stored event and encodes the feed. An empty store
// yields the minimal valid stub calendar so clients keep the
// subscription alive.
func (r *Renderer) Render(ctx context.Context) ([]byte, error) {
	events, err := r.Reader.AllEvents(ctx)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(r.Clock.Now().UTC())

	for _, e := range events {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID,
			fmt.Sprintf(config.FormatEventUID, eventUIDBase(e), e.Year, config.ICalDomain))
		event.Props.SetText(config.PropSummary, e.Title)
		if e.Description != "" {
			event.Props.SetText(config.PropDescription, e.Description)
		}

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(e.Start)
		event.Props.Set(dtStartProp)
		event.Props.Set(dtStampProp)

		for _, rem := range e.Reminders {
			addAlarm(event, rem, e.Title)
		}

		cal.Children = append(cal.Children, event.Component)
	}

	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgFeedRendered,
		config.LogKeyComponent, config.CompFeed,
		config.LogKeyCount, len(events),
		config.LogKeySizeBytes, buf.Len(),
	)
	return buf.Bytes(), nil
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, rem engine.Reminder, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Set trigger manually to avoid "VALUE=TEXT" param.
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = triggerValue(rem.MinutesBefore)
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

// triggerValue renders a minutes-before offset as an ISO 8601 duration.
// Whole days come out as -P<n>D, everything else as -PT<n>M; an offset
// of zero means "on the day" and triggers at the event start.
func triggerValue(minutesBefore int) string {
	if minutesBefore <= 0 {
		return "PT0M"
	}
	const minutesPerDay = 24 * 60
	if minutesBefore%minutesPerDay == 0 {
		return fmt.Sprintf("-P%dD", minutesBefore/minutesPerDay)
	}
	return fmt.Sprintf("-PT%dM", minutesBefore)
}

// eventUIDBase derives a stable UID component from fields that survive a
// re-sync. Store identifiers change when events are recreated, so the
// title and civil date anchor the UID instead.
func eventUIDBase(e engine.CalendarEvent) string {
	return fmt.Sprintf("%s-%s", e.Start.Format(config.DateFormatFullBasic), sanitizeUID(e.Title))
}

func sanitizeUID(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	return string(out)
}
