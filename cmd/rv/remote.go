package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named servers",
	GroupID: "system",
	Long: `Remotes are stored under $XDG_STATE_HOME/rendezvous/remotes.toml. The
active remote supplies the default HTTP URL, gRPC address, NATS URL and
acting profile; RENDEZVOUS_* variables and flags still win.`,
	// Remote subcommands only touch the local file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add or replace a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := Remote{HTTPURL: args[1]}
		r.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		r.Profile, _ = cmd.Flags().GetString("as")

		var active bool
		err := editRemotes(func(b *remoteBook) error {
			if err := b.put(args[0], r); err != nil {
				return err
			}
			active = b.Active == args[0]
			return nil
		})
		if err != nil {
			return err
		}
		suffix := ""
		if active {
			suffix = ", active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved remote %s (%s%s)\n", args[0], r.HTTPURL, suffix)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(b *remoteBook) error { return b.drop(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed remote %s\n", args[0])
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := editRemotes(func(b *remoteBook) error { return b.activate(args[0]) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using %s\n", args[0])
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show remotes, the active one starred",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := readRemotes()
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(b)
			return nil
		}
		if len(b.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes; add one with `rv remote add`")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tHTTP\tGRPC\tNATS\tPROFILE")
		for _, name := range b.names() {
			r := b.Remotes[name]
			star := " "
			if name == b.Active {
				star = "*"
			}
			fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\n", star, name, r.HTTPURL, dash(r.GRPCAddr), dash(r.NATSURL), dash(r.Profile))
		}
		return tw.Flush()
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address (host:port)")
	remoteAddCmd.Flags().String("nats", "", "NATS URL used by watch")
	remoteAddCmd.Flags().String("as", "", "acting profile id")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd)
}
