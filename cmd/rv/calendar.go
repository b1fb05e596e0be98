package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/client"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
	"github.com/alfredjeanlab/rendezvous/internal/ui"
)

const dayKeyLayout = "2006-01-02"

var calendarCmd = &cobra.Command{
	Use:     "calendar",
	Short:   "Show a month of events",
	GroupID: "views",
	Long: `Show a month grid with an agenda below it. Days are cut in --tz, else
the acting profile's zone, else ` + timezone.Default + `. Without --all only the
acting profile's events are shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		monthArg, _ := cmd.Flags().GetString("month")
		zone, _ := cmd.Flags().GetString("tz")
		all, _ := cmd.Flags().GetBool("all")

		snap, err := client.NewState(rvClient).Refresh(cmd.Context())
		if err != nil {
			return err
		}

		evts := snap.Events
		if !all && profileID != "" {
			evts = snap.EventsFor(profileID)
		}
		if zone == "" {
			zone = timezone.Default
			if p := snap.Profile(profileID); p != nil {
				zone = p.Timezone
			}
		}

		anchor := time.Now()
		if monthArg != "" {
			loc, err := timezone.Load(zone)
			if err != nil {
				return err
			}
			anchor, err = time.ParseInLocation("2006-01", monthArg, loc)
			if err != nil {
				return fmt.Errorf("invalid --month %q: want YYYY-MM", monthArg)
			}
		}

		grid, err := timezone.MonthGrid(anchor, zone, time.Now())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]any{
				"timezone": zone,
				"days":     grid.Days(),
				"events":   eventsInGrid(grid, evts),
			})
			return nil
		}
		renderMonth(cmd.OutOrStdout(), grid, evts, snap.ProfileNames())
		return nil
	},
}

// bucketByDay groups events under the local date of their start.
func bucketByDay(loc *time.Location, evts []*client.EventView) map[string][]*client.EventView {
	byDay := make(map[string][]*client.EventView)
	for _, e := range evts {
		key := e.Start.In(loc).Format(dayKeyLayout)
		byDay[key] = append(byDay[key], e)
	}
	return byDay
}

// eventsInGrid keeps the events starting on a day the grid shows.
func eventsInGrid(grid timezone.Grid, evts []*client.EventView) []*client.EventView {
	byDay := bucketByDay(grid.Location(), evts)
	out := []*client.EventView{}
	for d := range grid.All() {
		out = append(out, byDay[d.Date.Format(dayKeyLayout)]...)
	}
	return out
}

// renderMonth draws the grid, marking days with events, followed by an
// agenda of the month's events in start order.
func renderMonth(w io.Writer, grid timezone.Grid, evts []*client.EventView, names map[string]string) {
	loc := grid.Location()
	year, month := grid.Month()
	byDay := bucketByDay(loc, evts)

	fmt.Fprintf(w, "%s  %s\n", ui.RenderAccent(fmt.Sprintf("%s %d", month, year)), ui.RenderMuted(timezone.Label(loc.String())))
	fmt.Fprintln(w, " Su  Mo  Tu  We  Th  Fr  Sa")

	var line strings.Builder
	col := 0
	for d := range grid.All() {
		cell := fmt.Sprintf("%2d", d.Date.Day())
		mark := " "
		if len(byDay[d.Date.Format(dayKeyLayout)]) > 0 {
			mark = "*"
		}
		switch {
		case d.IsToday:
			cell = ui.RenderHighlight(cell)
		case !d.InMonth:
			cell = ui.RenderMuted(cell)
		}
		line.WriteString(" " + cell + mark)
		col++
		if col == 7 {
			fmt.Fprintln(w, line.String())
			line.Reset()
			col = 0
		}
	}

	fmt.Fprintln(w)
	shown := 0
	for d := range grid.All() {
		if !d.InMonth {
			continue
		}
		for _, e := range byDay[d.Date.Format(dayKeyLayout)] {
			start := e.Start.In(loc).Format("Mon Jan 2 3:04 PM")
			fmt.Fprintf(w, "%s  %s  %s\n",
				start,
				truncate(e.Title, titleWidth),
				ui.RenderMuted(strings.Join(profileNames(e.Profiles, names), ", ")),
			)
			shown++
		}
	}
	if shown == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no events this month"))
	}
}

func init() {
	calendarCmd.Flags().String("month", "", "month to show (YYYY-MM, default: current)")
	calendarCmd.Flags().String("tz", "", "zone to cut days in")
	calendarCmd.Flags().Bool("all", false, "show every profile's events")
}
