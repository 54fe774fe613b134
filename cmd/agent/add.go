package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/configflow"
	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/entries"
	"github.com/benmeehan/invoxia-agent/internal/integration"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// runAdd validates an account and stores it as a new config entry. It
// returns the process exit code.
func runAdd(args []string, store *entries.Store, clientFactory integration.ClientFactory, logger zerolog.Logger) int {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	url := fs.String("url", gpstracker.DefaultAPIURL, "Invoxia API URL")
	username := fs.String("username", "", "account username")
	password := fs.String("password", os.Getenv("INVOXIA_PASSWORD"), "account password (defaults to $INVOXIA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "add: -username and -password are required")
		fs.Usage()
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	flow := configflow.NewFlow(store, configflow.ClientFactory(clientFactory), logger)
	result := flow.StepUser(ctx, &entries.Data{URL: *url, Username: *username, Password: *password})

	switch result.Type {
	case constants.ResultTypeCreateEntry:
		fmt.Printf("Added %s (entry %s)\n", result.Title, result.Entry.EntryID)
		return 0
	case constants.ResultTypeAbort:
		fmt.Fprintf(os.Stderr, "add: aborted: %s\n", result.Reason)
	default:
		fmt.Fprintf(os.Stderr, "add: %s\n", result.Errors["base"])
	}
	return 1
}
