package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/sheetsync/internal/config"
	"github.com/mrlokans/sheetsync/internal/entities"
)

// TabLister discovers the tabs of a spreadsheet.
type TabLister interface {
	DiscoverTabs(ctx context.Context, actorID string, scope entities.SyncScope, sourceRef string) ([]entities.SheetTab, error)
}

// TabsCommand lists the tabs of a spreadsheet.
type TabsCommand struct {
	ActorID      string
	ClientID     string
	SourceRef    string
	DatabasePath string
}

func NewTabsCommand() *TabsCommand {
	return &TabsCommand{}
}

func (cmd *TabsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("tabs", flag.ExitOnError)

	fs.StringVar(&cmd.ActorID, "actor", "", "Actor whose credentials are used (required)")
	fs.StringVar(&cmd.ClientID, "client", "", "Client tenant the lookup is made for")
	fs.StringVar(&cmd.SourceRef, "source", "", "Spreadsheet URL or id (required)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s tabs -actor <id> -source <url> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List the tabs of a spreadsheet as JSON.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.ActorID == "" {
		return fmt.Errorf("required flag -actor not provided")
	}
	if cmd.SourceRef == "" {
		return fmt.Errorf("required flag -source not provided")
	}

	return nil
}

func (cmd *TabsCommand) Execute(ctx context.Context, l TabLister, out io.Writer) error {
	scope := entities.NewSyncScope(cmd.ActorID, cmd.ClientID)
	tabs, err := l.DiscoverTabs(ctx, cmd.ActorID, scope, cmd.SourceRef)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(tabs)
}

func (cmd *TabsCommand) Run() error {
	app, err := openApp(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer app.Close()

	return cmd.Execute(context.Background(), app.Orchestrator, os.Stdout)
}
