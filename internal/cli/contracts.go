// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
	"github.com/etlundquist/ironbad-tui/internal/util"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(styles.Teal).
			Bold(true)

	idStyle = lipgloss.NewStyle().
		Foreground(styles.TextMuted)

	readyStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	pendingStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)
)

// HandleContracts implements "ironbad contracts": a table of contracts with
// their processing status.
func HandleContracts(args []string) error {
	parser := NewArgParser(args)
	cfg := LoadConfig()
	client := NewAPIClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	contracts, err := client.ListContracts(ctx)
	if err != nil {
		return err
	}
	if len(contracts) == 0 {
		fmt.Println("No contracts found.")
		return nil
	}

	if parser.BoolFlag("ids") {
		for _, c := range contracts {
			fmt.Println(c.ID)
		}
		return nil
	}

	color := ColorEnabled() && !parser.BoolFlag("no-color")
	printContractTable(contracts, color)
	return nil
}

func printContractTable(contracts []api.Contract, color bool) {
	titleWidth := TerminalWidth() - 50
	if titleWidth < 20 {
		titleWidth = 20
	}

	render := func(style lipgloss.Style, s string) string {
		if !color {
			return s
		}
		return style.Render(s)
	}

	fmt.Printf("%s  %s  %s  %s\n",
		render(headerStyle, util.PadRight("ID", 36)),
		render(headerStyle, util.PadRight("TITLE", titleWidth)),
		render(headerStyle, util.PadRight("STATUS", 10)),
		render(headerStyle, "UPDATED"))

	for _, c := range contracts {
		statusStyle := pendingStyle
		if c.Status == "completed" || c.Status == "processed" {
			statusStyle = readyStyle
		}
		fmt.Printf("%s  %s  %s  %s\n",
			render(idStyle, util.PadRight(c.ID, 36)),
			util.PadRight(util.TruncateWidth(c.Title(), titleWidth), titleWidth),
			render(statusStyle, util.PadRight(c.Status, 10)),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}

// ResolveContract finds a contract by id, or the sole contract when id is
// empty. Used by the TUI launcher so "ironbad" alone works on single-
// contract environments.
func ResolveContract(ctx context.Context, client *api.Client, id string) (*api.Contract, error) {
	if id != "" {
		return client.GetContract(ctx, id)
	}

	contracts, err := client.ListContracts(ctx)
	if err != nil {
		return nil, err
	}
	switch len(contracts) {
	case 0:
		return nil, fmt.Errorf("no contracts available; upload one first")
	case 1:
		return &contracts[0], nil
	default:
		fmt.Fprintln(os.Stderr, "Multiple contracts available; pick one:")
		printContractTable(contracts, ColorEnabled())
		return nil, fmt.Errorf("contract id required")
	}
}
