// Package export renders events into interchange formats: iCalendar feeds
// and spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// ProductID identifies this producer in generated calendars.
const ProductID = "-//rendezvous//scheduler//EN"

// Calendar builds a VCALENDAR holding one VEVENT per event. names maps
// profile ids to display names for the attendee list; stamp is the
// DTSTAMP of every component.
func Calendar(name string, evts []*model.Event, names map[string]string, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}
	for _, e := range evts {
		cal.Children = append(cal.Children, toVEvent(e, names, stamp))
	}
	return cal
}

// WriteICS encodes Calendar(name, evts, names, stamp) to w.
func WriteICS(w io.Writer, name string, evts []*model.Event, names map[string]string, stamp time.Time) error {
	if len(evts) == 0 {
		// The encoder rejects a VCALENDAR without components, but an empty
		// feed is a valid answer for a profile with no events.
		_, err := fmt.Fprintf(w, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:%s\r\nEND:VCALENDAR\r\n", ProductID)
		return err
	}
	if err := ical.NewEncoder(w).Encode(Calendar(name, evts, names, stamp)); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// UID is the stable iCalendar identity of an event.
func UID(eventID string) string {
	return eventID + "@rendezvous"
}

func toVEvent(e *model.Event, names map[string]string, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(e.ID))
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
	ve.Props.SetDateTime(ical.PropLastModified, e.UpdatedAt.UTC())
	ve.Props.SetText(ical.PropSequence, fmt.Sprint(len(e.UpdateLogs)))

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	for _, id := range e.Profiles {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "urn:rendezvous:profile:" + id
		if n := names[id]; n != "" {
			p.Params.Set(ical.ParamCommonName, n)
		}
		ve.Props.Add(p)
	}
	if n := names[e.CreatedBy]; n != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "urn:rendezvous:profile:" + e.CreatedBy
		p.Params.Set(ical.ParamCommonName, n)
		ve.Props.Set(p)
	}
	// Authoring zone, so importers can show the wall-clock the author meant.
	ve.Props.SetText("X-RENDEZVOUS-TZID", e.Timezone)
	return ve
}

// ParticipantID extracts the profile id from an ATTENDEE or ORGANIZER value
// written by this package.
func ParticipantID(value string) (string, bool) {
	return strings.CutPrefix(value, "urn:rendezvous:profile:")
}
