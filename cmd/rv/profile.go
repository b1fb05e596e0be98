package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/client"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage profiles",
	GroupID: "schedule",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tz, _ := cmd.Flags().GetString("tz")
		p, err := rvClient.CreateProfile(cmd.Context(), &client.CreateProfileRequest{
			Name:     args[0],
			Timezone: tz,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(p)
			return nil
		}
		printProfile(cmd.OutOrStdout(), p)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		profiles, err := rvClient.ListProfiles(cmd.Context(), all)
		if err != nil {
			return err
		}
		if jsonOutput {
			if profiles == nil {
				profiles = []*model.Profile{}
			}
			printJSON(profiles)
			return nil
		}
		printProfileTable(cmd.OutOrStdout(), profiles)
		return nil
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename, rezone, activate or deactivate a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req client.UpdateProfileRequest
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			req.Name = model.Some(v)
		}
		if cmd.Flags().Changed("tz") {
			v, _ := cmd.Flags().GetString("tz")
			req.Timezone = model.Some(v)
		}
		if cmd.Flags().Changed("active") {
			v, _ := cmd.Flags().GetBool("active")
			req.IsActive = model.Some(v)
		}

		p, err := rvClient.UpdateProfile(cmd.Context(), args[0], &req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(p)
			return nil
		}
		printProfile(cmd.OutOrStdout(), p)
		return nil
	},
}

var profileZonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the supported time zones",
	Args:  cobra.NoArgs,
	// The allow-list is compiled in; no server needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		zones := timezone.Supported()
		if jsonOutput {
			printJSON(zones)
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ZONE\tLABEL")
		for _, z := range zones {
			marker := ""
			if z.ID == timezone.Default {
				marker = " (default)"
			}
			fmt.Fprintf(w, "%s\t%s%s\n", z.ID, z.Label, marker)
		}
		return w.Flush()
	},
}

func init() {
	profileCreateCmd.Flags().String("tz", "", "time zone (default "+timezone.Default+")")
	profileListCmd.Flags().Bool("all", false, "include inactive profiles")
	profileUpdateCmd.Flags().String("name", "", "new display name")
	profileUpdateCmd.Flags().String("tz", "", "new time zone")
	profileUpdateCmd.Flags().Bool("active", true, "whether the profile is active")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUpdateCmd)
	profileCmd.AddCommand(profileZonesCmd)
}
