// The monitor command is a read-only terminal dashboard over the engine's
// session API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "monitor",
		Usage: "Watch engine sessions in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "Engine API base URL",
				Value:   "http://localhost:8080",
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Poll interval",
				Value:   time.Second,
			},
		},
		Action: monitorAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func monitorAction(_ context.Context, cmd *cli.Command) error {
	model := NewModel(cmd.String("url"), cmd.Duration("interval"))

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}

	return nil
}
