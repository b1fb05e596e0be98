package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/export"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

// FormatVersion is written in the JSONL header.
const FormatVersion = "1"

// Snapshot is a point-in-time copy of every profile and event, ledgers
// included. Each sync run loads one and hands it to every destination.
type Snapshot struct {
	Profiles []*model.Profile
	Events   []*model.Event
	Taken    time.Time
}

// ProfileNames maps profile ids to display names.
func (s *Snapshot) ProfileNames() map[string]string {
	names := make(map[string]string, len(s.Profiles))
	for _, p := range s.Profiles {
		names[p.ID] = p.Name
	}
	return names
}

// LedgerEntries counts the update log entries across every event.
func (s *Snapshot) LedgerEntries() int {
	n := 0
	for _, e := range s.Events {
		n += len(e.UpdateLogs)
	}
	return n
}

// Summary is the one-line description used in commit messages and logs.
func (s *Snapshot) Summary() string {
	return fmt.Sprintf("%d profiles, %d events, %d ledger entries",
		len(s.Profiles), len(s.Events), s.LedgerEntries())
}

// Artifact is one encoded form of a snapshot.
type Artifact struct {
	Ext         string // ".jsonl" or ".ics"
	ContentType string
	Body        []byte
}

// Render encodes snap as the JSONL backup followed by the iCalendar file.
func Render(snap *Snapshot) ([]Artifact, error) {
	var jsonl, ics bytes.Buffer
	if err := WriteJSONL(&jsonl, snap); err != nil {
		return nil, err
	}
	if err := export.WriteICS(&ics, CalendarName, snap.Events, snap.ProfileNames(), snap.Taken); err != nil {
		return nil, err
	}
	return []Artifact{
		{Ext: ".jsonl", ContentType: "application/x-ndjson", Body: jsonl.Bytes()},
		{Ext: ".ics", ContentType: "text/calendar; charset=utf-8", Body: ics.Bytes()},
	}, nil
}

// artifactPath names the artifact next to base, swapping the extension.
func artifactPath(base string, a Artifact) string {
	return strings.TrimSuffix(base, path.Ext(base)) + a.Ext
}

// header is the first JSONL record.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ProfileCount int       `json:"profile_count"`
	EventCount   int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Load reads all profiles, inactive ones included, and all events from the
// store. Profiles are sorted by id; events keep the store's start order.
func Load(ctx context.Context, s store.Store, now time.Time) (*Snapshot, error) {
	profiles, err := s.ListProfiles(ctx, model.ProfileFilter{IncludeInactive: true})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	slices.SortFunc(profiles, func(a, b *model.Profile) int {
		return strings.Compare(a.ID, b.ID)
	})

	evts, err := s.ListEvents(ctx, model.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &Snapshot{Profiles: profiles, Events: evts, Taken: now.UTC()}, nil
}

// WriteJSONL writes snap as a header line followed by one line per profile
// and one per event.
func WriteJSONL(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      FormatVersion,
		Type:         "header",
		Timestamp:    snap.Taken,
		ProfileCount: len(snap.Profiles),
		EventCount:   len(snap.Events),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, p := range snap.Profiles {
		if err := encodeRecord(enc, "profile", p); err != nil {
			return fmt.Errorf("encode profile %s: %w", p.ID, err)
		}
	}
	for _, e := range snap.Events {
		if err := encodeRecord(enc, "event", e); err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
	}
	return nil
}

func encodeRecord(enc *json.Encoder, typ string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return enc.Encode(record{Type: typ, Data: data})
}

// ExportJSONL loads a snapshot from s and writes it to w.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, now time.Time) error {
	snap, err := Load(ctx, s, now)
	if err != nil {
		return err
	}
	return WriteJSONL(w, snap)
}

// ReadJSONL parses output of WriteJSONL. Unknown record types are skipped so
// older readers accept newer files.
func ReadJSONL(r io.Reader) (*Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	snap := &Snapshot{}
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		if line == 1 {
			var h header
			if err := json.Unmarshal(raw, &h); err != nil {
				return nil, fmt.Errorf("line 1: %w", err)
			}
			if h.Type != "header" || h.Version != FormatVersion {
				return nil, fmt.Errorf("line 1: unsupported header %q version %q", h.Type, h.Version)
			}
			snap.Taken = h.Timestamp
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Type {
		case "profile":
			var p model.Profile
			if err := json.Unmarshal(rec.Data, &p); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			snap.Profiles = append(snap.Profiles, &p)
		case "event":
			var e model.Event
			if err := json.Unmarshal(rec.Data, &e); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			snap.Events = append(snap.Events, &e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if line == 0 {
		return nil, fmt.Errorf("empty export")
	}
	return snap, nil
}
