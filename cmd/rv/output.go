package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/rendezvous/internal/client"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
	"github.com/alfredjeanlab/rendezvous/internal/ui"
)

const titleWidth = 40

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printProfileTable(w io.Writer, profiles []*model.Profile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTIMEZONE\tACTIVE")
	for _, p := range profiles {
		active := ui.RenderOK("yes")
		if !p.IsActive {
			active = ui.RenderMuted("no")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Timezone, active)
	}
	tw.Flush()
}

func printProfile(w io.Writer, p *model.Profile) {
	fmt.Fprintf(w, "ID:        %s\n", p.ID)
	fmt.Fprintf(w, "Name:      %s\n", p.Name)
	fmt.Fprintf(w, "Timezone:  %s (%s)\n", p.Timezone, timezone.Label(p.Timezone))
	fmt.Fprintf(w, "Active:    %t\n", p.IsActive)
}

// whenIn renders the event window in zone, falling back to UTC when the
// zone cannot be loaded.
func whenIn(e *model.Event, zone string) string {
	start, err := timezone.ToLocalDisplay(e.Start, zone, timezone.StyleDateAndTime)
	if err != nil {
		zone = "UTC"
		start, _ = timezone.ToLocalDisplay(e.Start, zone, timezone.StyleDateAndTime)
	}
	end, _ := timezone.ToLocalDisplay(e.End, zone, timezone.StyleTimeOnly)
	if !sameLocalDay(e, zone) {
		end, _ = timezone.ToLocalDisplay(e.End, zone, timezone.StyleDateAndTime)
	}
	return start + " - " + end
}

func sameLocalDay(e *model.Event, zone string) bool {
	s, err1 := timezone.Convert(e.Start, zone)
	en, err2 := timezone.Convert(e.End, zone)
	if err1 != nil || err2 != nil {
		return false
	}
	sy, sm, sd := s.Date()
	ey, em, ed := en.Date()
	return sy == ey && sm == em && sd == ed
}

func printEventTable(w io.Writer, evts []*client.EventView, zone string, names map[string]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTITLE\tPROFILES")
	for _, e := range evts {
		z := zone
		if z == "" {
			z = e.Timezone
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.ID,
			whenIn(&e.Event, z),
			truncate(e.Title, titleWidth),
			strings.Join(profileNames(e.Profiles, names), ", "),
		)
	}
	tw.Flush()
}

func profileNames(ids []string, names map[string]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := names[id]; ok && n != "" {
			out[i] = n
		} else {
			out[i] = id
		}
	}
	return out
}

func printEvent(w io.Writer, v *client.EventView, names map[string]string) {
	fmt.Fprintf(w, "ID:          %s\n", v.ID)
	fmt.Fprintf(w, "Title:       %s\n", v.Title)
	if v.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", v.Description)
	}
	fmt.Fprintf(w, "Timezone:    %s (%s)\n", v.Timezone, timezone.Label(v.Timezone))
	fmt.Fprintf(w, "When:        %s\n", whenIn(&v.Event, v.Timezone))
	if v.Local != nil && v.Local.Timezone != v.Timezone {
		fmt.Fprintf(w, "Local:       %s - %s (%s)\n", v.Local.StartDisplay, v.Local.EndDisplay, v.Local.Label)
	}
	fmt.Fprintf(w, "Profiles:    %s\n", strings.Join(profileNames(v.Profiles, names), ", "))
	fmt.Fprintf(w, "Created By:  %s\n", profileNames([]string{v.CreatedBy}, names)[0])
	fmt.Fprintf(w, "Status:      %s\n", v.Status)
	fmt.Fprintf(w, "Updates:     %d\n", len(v.UpdateLogs))
}

func printLogs(w io.Writer, logs []client.LogEntry, names map[string]string) {
	if len(logs) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no updates"))
		return
	}
	for i, entry := range logs {
		who := profileNames([]string{entry.UpdatedBy}, names)[0]
		fmt.Fprintf(w, "%s %s by %s\n",
			ui.RenderAccent(fmt.Sprintf("#%d", i+1)),
			entry.UpdatedAt.UTC().Format("2006-01-02 15:04:05Z"),
			who,
		)
		for _, c := range entry.Changes {
			fmt.Fprintf(w, "    %s\n", c)
		}
	}
}

// printError reports err on stderr, adding per-field details when the
// server sent them.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderError("Error:"), err)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		for _, f := range apiErr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Message)
		}
	}
}
