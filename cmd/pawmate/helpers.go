package main

import (
	"fmt"
	"os"

	pawmate "github.com/pawmate-app/pawmate-go"
	"github.com/rs/zerolog"
)

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log delivery-layer events to stderr")
}

// getClient creates an anonymous client from the saved project settings.
func getClient() *pawmate.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Project.URL == "" || cfg.Project.APIKey == "" {
		fmt.Fprintln(os.Stderr, "No project configured. Run 'pawmate init <project-url> <api-key>' first.")
		os.Exit(1)
	}

	var opts []pawmate.ClientOption
	if verbose {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		opts = append(opts, pawmate.WithLogger(log))
	}
	return pawmate.NewClient(cfg.Project.URL, cfg.Project.APIKey, opts...)
}

// getAuthedClient creates a client carrying the saved session token.
func getAuthedClient() (*pawmate.Client, *Config) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Project.URL == "" || cfg.Project.APIKey == "" {
		fmt.Fprintln(os.Stderr, "No project configured. Run 'pawmate init <project-url> <api-key>' first.")
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "Not signed in. Run 'pawmate login <email> <password>' first.")
		os.Exit(1)
	}

	var opts []pawmate.ClientOption
	if verbose {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		opts = append(opts, pawmate.WithLogger(log))
	}
	client := pawmate.NewClient(cfg.Project.URL, cfg.Project.APIKey, opts...)
	client.SetToken(cfg.Auth.Token)
	return client, cfg
}
