package server

import (
	"github.com/alfredjeanlab/rendezvous/internal/ledger"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// eventView is the wire shape of an event. Local and ProfileRefs are only
// filled when the request asks for them with ?tz= and ?expand=profiles.
type eventView struct {
	*model.Event
	Local       *localTimes      `json:"local,omitempty"`
	ProfileRefs []*model.Profile `json:"profile_refs,omitempty"`
}

// localTimes projects an event window into one zone.
type localTimes struct {
	Timezone      string `json:"timezone"`
	Label         string `json:"label"`
	StartEditable string `json:"start_editable"`
	EndEditable   string `json:"end_editable"`
	StartDisplay  string `json:"start_display"`
	EndDisplay    string `json:"end_display"`
}

// logView pairs a ledger entry with its human summary.
type logView struct {
	model.UpdateLogEntry
	Changes []string `json:"changes"`
}

func project(e *model.Event, zone string) (*localTimes, error) {
	lt := &localTimes{Timezone: zone, Label: timezone.Label(zone)}
	var err error
	if lt.StartEditable, err = timezone.ToLocalEditable(e.Start, zone); err != nil {
		return nil, err
	}
	if lt.EndEditable, err = timezone.ToLocalEditable(e.End, zone); err != nil {
		return nil, err
	}
	if lt.StartDisplay, err = timezone.ToLocalDisplay(e.Start, zone, timezone.StyleDateAndTime); err != nil {
		return nil, err
	}
	if lt.EndDisplay, err = timezone.ToLocalDisplay(e.End, zone, timezone.StyleDateAndTime); err != nil {
		return nil, err
	}
	return lt, nil
}

// newEventViews wraps evts, projecting into zone when it is non-empty.
func newEventViews(evts []*model.Event, zone string) ([]*eventView, error) {
	if zone != "" {
		if _, err := timezone.Load(zone); err != nil {
			return nil, err
		}
	}
	views := make([]*eventView, len(evts))
	for i, e := range evts {
		v := &eventView{Event: e}
		if zone != "" {
			lt, err := project(e, zone)
			if err != nil {
				return nil, err
			}
			v.Local = lt
		}
		views[i] = v
	}
	return views, nil
}

func newLogViews(entries []model.UpdateLogEntry) []logView {
	out := make([]logView, len(entries))
	for i, entry := range entries {
		out[i] = logView{UpdateLogEntry: entry, Changes: ledger.Changes(entry)}
	}
	return out
}
