package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/client"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

var eventCmd = &cobra.Command{
	Use:     "event",
	Short:   "Create, edit and inspect events",
	GroupID: "schedule",
}

// windowValue splits a --start/--end value into an instant (RFC 3339 with
// an offset) or a local editable string for the server to read in the
// event's zone.
func windowValue(s string) (*time.Time, string) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, ""
	}
	return nil, s
}

// parseBound reads a --from/--to value: RFC 3339, or a bare date taken as
// local midnight in zone.
func parseBound(s, zone string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	if zone == "" {
		zone = "UTC"
	}
	t, err := timezone.FromLocalEditable(s+"T00:00", zone)
	if err != nil {
		return nil, fmt.Errorf("invalid bound %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return &t, nil
}

// profileDirectory fetches every profile for name lookups. Failures only
// cost the pretty names.
func profileDirectory(ctx context.Context) map[string]string {
	profiles, err := rvClient.ListProfiles(ctx, true)
	if err != nil {
		return nil
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.Name
	}
	return names
}

var eventCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an event",
	Long: `Create an event. --start and --end take either RFC 3339 instants
("2024-03-10T07:00:00Z") or local times ("2024-03-10T09:00") read in --tz.
Participants default to the acting profile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creator, err := requireProfile()
		if err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("description")
		with, _ := cmd.Flags().GetStringSlice("with")
		tz, _ := cmd.Flags().GetString("tz")
		startArg, _ := cmd.Flags().GetString("start")
		endArg, _ := cmd.Flags().GetString("end")
		if len(with) == 0 {
			with = []string{creator}
		}

		req := &client.CreateEventRequest{
			Title:       args[0],
			Description: desc,
			Profiles:    with,
			Timezone:    tz,
			CreatedBy:   creator,
		}
		req.Start, req.StartLocal = windowValue(startArg)
		req.End, req.EndLocal = windowValue(endArg)

		e, err := rvClient.CreateEvent(cmd.Context(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(e)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", e.ID)
		printEvent(cmd.OutOrStdout(), &client.EventView{Event: *e}, profileDirectory(cmd.Context()))
		return nil
	},
}

var eventUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an event; every update is recorded in its log",
	Long: `Update an event. Only the flags given are changed. The description
is the only field that can be cleared (--clear-description). An update that
changes nothing is still recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := requireProfile()
		if err != nil {
			return err
		}
		req, err := updateRequest(cmd)
		if err != nil {
			return err
		}
		req.UpdatedBy = actor

		resp, err := rvClient.UpdateEvent(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		names := profileDirectory(cmd.Context())
		printEvent(cmd.OutOrStdout(), resp.Event, names)
		fmt.Fprintln(cmd.OutOrStdout())
		printLogs(cmd.OutOrStdout(), []client.LogEntry{resp.Entry}, names)
		return nil
	},
}

// updateRequest maps the changed flags onto a tri-state request.
func updateRequest(cmd *cobra.Command) (*client.UpdateEventRequest, error) {
	flags := cmd.Flags()
	req := &client.UpdateEventRequest{}

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		req.Title = model.Some(v)
	}
	clearDesc, _ := flags.GetBool("clear-description")
	switch {
	case clearDesc && flags.Changed("description"):
		return nil, fmt.Errorf("--description and --clear-description are mutually exclusive")
	case clearDesc:
		req.Description = model.Clear[string]()
	case flags.Changed("description"):
		v, _ := flags.GetString("description")
		req.Description = model.Some(v)
	}
	if flags.Changed("with") {
		v, _ := flags.GetStringSlice("with")
		req.Profiles = model.Some(v)
	}
	if flags.Changed("tz") {
		v, _ := flags.GetString("tz")
		req.Timezone = model.Some(v)
	}
	if flags.Changed("start") {
		v, _ := flags.GetString("start")
		if t, local := windowValue(v); t != nil {
			req.Start = model.Some(*t)
		} else {
			req.StartLocal = model.Some(local)
		}
	}
	if flags.Changed("end") {
		v, _ := flags.GetString("end")
		if t, local := windowValue(v); t != nil {
			req.End = model.Some(*t)
		} else {
			req.EndLocal = model.Some(local)
		}
	}
	return req, nil
}

var eventShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tz, _ := cmd.Flags().GetString("tz")
		v, err := rvClient.GetEvent(cmd.Context(), args[0], tz)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(v)
			return nil
		}
		printEvent(cmd.OutOrStdout(), v, profileDirectory(cmd.Context()))
		return nil
	},
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events by start time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tz, _ := cmd.Flags().GetString("tz")
		forProfile, _ := cmd.Flags().GetString("for")
		fromArg, _ := cmd.Flags().GetString("from")
		toArg, _ := cmd.Flags().GetString("to")

		req := &client.ListEventsRequest{ProfileID: forProfile, TZ: tz}
		var err error
		if req.From, err = parseBound(fromArg, tz); err != nil {
			return err
		}
		if req.To, err = parseBound(toArg, tz); err != nil {
			return err
		}

		resp, err := rvClient.ListEvents(cmd.Context(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printEventTable(cmd.OutOrStdout(), resp.Events, tz, profileDirectory(cmd.Context()))
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d events\n", resp.Total)
		return nil
	},
}

var eventLogsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Show an event's update log, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logs, err := rvClient.ListEventLogs(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			if logs == nil {
				logs = []client.LogEntry{}
			}
			printJSON(logs)
			return nil
		}
		printLogs(cmd.OutOrStdout(), logs, profileDirectory(cmd.Context()))
		return nil
	},
}

func addUpdateFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "new title")
	cmd.Flags().String("description", "", "new description")
	cmd.Flags().Bool("clear-description", false, "remove the description")
	cmd.Flags().StringSlice("with", nil, "replace the participant profile ids")
	cmd.Flags().String("tz", "", "new event time zone")
	cmd.Flags().String("start", "", "new start time")
	cmd.Flags().String("end", "", "new end time")
}

func init() {
	eventCreateCmd.Flags().String("description", "", "event description")
	eventCreateCmd.Flags().StringSlice("with", nil, "participant profile ids (default: the acting profile)")
	eventCreateCmd.Flags().String("tz", "", "event time zone (default: the creator's)")
	eventCreateCmd.Flags().String("start", "", "start time")
	eventCreateCmd.Flags().String("end", "", "end time")
	_ = eventCreateCmd.MarkFlagRequired("start")
	_ = eventCreateCmd.MarkFlagRequired("end")

	addUpdateFlags(eventUpdateCmd)

	eventShowCmd.Flags().String("tz", "", "also show times in this zone")

	eventListCmd.Flags().String("tz", "", "show times in this zone")
	eventListCmd.Flags().String("for", "", "only events this profile participates in")
	eventListCmd.Flags().String("from", "", "only events ending after this date")
	eventListCmd.Flags().String("to", "", "only events starting before this date")

	eventCmd.AddCommand(eventCreateCmd)
	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventShowCmd)
	eventCmd.AddCommand(eventUpdateCmd)
	eventCmd.AddCommand(eventLogsCmd)
}
