package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alfredjeanlab/rendezvous/internal/client"
	"github.com/alfredjeanlab/rendezvous/internal/export"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	rvsync "github.com/alfredjeanlab/rendezvous/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export events as a spreadsheet, calendar or JSONL backup",
	GroupID: "views",
}

// nopCloser keeps stdout open when it stands in for an output file.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns the file named by path, or stdout for "" and "-".
// Binary output is refused on a terminal.
func openOutput(path string, binary bool) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		if binary && term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, fmt.Errorf("refusing to write binary output to a terminal; use -o <file>")
		}
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// withOutput runs write against the -o destination and reports where the
// output went.
func withOutput(cmd *cobra.Command, binary bool, write func(io.Writer) error) error {
	path, _ := cmd.Flags().GetString("output")
	out, err := openOutput(path, binary)
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if path != "" && path != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	}
	return nil
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx",
	Short: "Download events as an Excel workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		forProfile, _ := cmd.Flags().GetString("for")
		tz, _ := cmd.Flags().GetString("tz")
		return withOutput(cmd, true, func(w io.Writer) error {
			return httpClient().ExportEvents(cmd.Context(), forProfile, tz, w)
		})
	},
}

var exportICSCmd = &cobra.Command{
	Use:   "ics",
	Short: "Export events as an iCalendar file",
	Long: `Export events as an iCalendar file. With --for the server's feed for
that profile is downloaded; otherwise every event is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		forProfile, _ := cmd.Flags().GetString("for")
		if forProfile != "" {
			return withOutput(cmd, false, func(w io.Writer) error {
				return httpClient().CalendarFeed(cmd.Context(), forProfile, w)
			})
		}
		snap, err := client.NewState(rvClient).Refresh(cmd.Context())
		if err != nil {
			return err
		}
		return withOutput(cmd, false, func(w io.Writer) error {
			return export.WriteICS(w, rvsync.CalendarName, modelEvents(snap.Events), snap.ProfileNames(), snap.FetchedAt)
		})
	},
}

var exportJSONLCmd = &cobra.Command{
	Use:   "jsonl",
	Short: "Write a JSONL backup of every profile and event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := client.NewState(rvClient).Refresh(cmd.Context())
		if err != nil {
			return err
		}
		return withOutput(cmd, false, func(w io.Writer) error {
			return rvsync.WriteJSONL(w, &rvsync.Snapshot{
				Profiles: snap.Profiles,
				Events:   modelEvents(snap.Events),
				Taken:    snap.FetchedAt,
			})
		})
	},
}

func modelEvents(views []*client.EventView) []*model.Event {
	out := make([]*model.Event, len(views))
	for i, v := range views {
		out[i] = &v.Event
	}
	return out
}

func init() {
	for _, c := range []*cobra.Command{exportXLSXCmd, exportICSCmd, exportJSONLCmd} {
		c.Flags().StringP("output", "o", "", "output file (default: stdout)")
		exportCmd.AddCommand(c)
	}
	exportXLSXCmd.Flags().String("for", "", "only this profile's events")
	exportXLSXCmd.Flags().String("tz", "", "zone for the time columns")
	exportICSCmd.Flags().String("for", "", "download this profile's feed")
}
