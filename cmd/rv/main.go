package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/client"
	"github.com/alfredjeanlab/rendezvous/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool
	profileID  string

	rvClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("RENDEZVOUS_HTTP_URL"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok && r.HTTPURL != "" {
		return r.HTTPURL
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("RENDEZVOUS_SERVER"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok && r.GRPCAddr != "" {
		return r.GRPCAddr
	}
	return "localhost:9090"
}

func defaultProfile() string {
	if s := os.Getenv("RENDEZVOUS_PROFILE"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok {
		return r.Profile
	}
	return ""
}

// connect builds the client for the selected transport.
func connect() (client.Client, error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL).WithProfile(profileID), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
	}
}

// httpClient returns an HTTP client even when --transport=grpc, for
// commands that only exist over HTTP.
func httpClient() *client.HTTPClient {
	if c, ok := rvClient.(*client.HTTPClient); ok {
		return c
	}
	return client.NewHTTPClient(httpURL).WithProfile(profileID)
}

// requireProfile returns the acting profile or an error naming the flag.
func requireProfile() (string, error) {
	if profileID == "" {
		return "", fmt.Errorf("no acting profile: pass --profile or set RENDEZVOUS_PROFILE")
	}
	return profileID, nil
}

var rootCmd = &cobra.Command{
	Use:   "rv <command>",
	Short: "CLI client for the Rendezvous scheduler",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		rvClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rvClient != nil {
			rvClient.Close()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Must run before the flag defaults below read the environment.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&profileID, "profile", defaultProfile(), "acting profile id")

	rootCmd.AddGroup(
		&cobra.Group{ID: "schedule", Title: "Scheduling:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Scheduling
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(eventCmd)

	// Views
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	ui.Setup()
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
