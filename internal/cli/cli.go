// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etlundquist/ironbad-tui/internal/api"
	"github.com/etlundquist/ironbad-tui/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMAND ROUTING
// =============================================================================

// Command identifies the top-level command to run.
type Command int

const (
	CmdTUI Command = iota // default: full-screen contract chat
	CmdChat               // plain-terminal REPL
	CmdContracts          // list contracts
	CmdConfig             // config init/show/path
	CmdCache              // section cache stats/clear/invalidate
	CmdVersion
	CmdHelp
)

// Parse maps os.Args onto a command and its remaining arguments.
func Parse() (Command, []string) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs is Parse over explicit arguments, for tests.
func ParseArgs(args []string) (Command, []string) {
	if len(args) == 0 {
		return CmdTUI, nil
	}

	cmd := strings.ToLower(args[0])
	rest := args[1:]

	switch cmd {
	case "tui":
		return CmdTUI, rest
	case "chat":
		return CmdChat, rest
	case "contracts", "ls":
		return CmdContracts, rest
	case "config":
		return CmdConfig, rest
	case "cache":
		return CmdCache, rest
	case "version", "-v", "--version":
		return CmdVersion, rest
	case "help", "-h", "--help":
		return CmdHelp, rest
	}

	// Anything else is a contract id for the TUI.
	return CmdTUI, args
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("ironbad %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(`ironbad - contract review terminal client

Usage:
  ironbad [contract-id]        Open the TUI (picks the contract when only one exists)
  ironbad chat <contract-id>   Plain-terminal chat REPL
  ironbad contracts            List contracts
  ironbad config <init|show|path>
  ironbad cache <stats|clear|invalidate <contract-id>>
  ironbad version

Flags (chat):
  --agent        Use the agent run stream instead of contract chat
  --no-color     Disable colored output

Environment:
  IRONBAD_API_URL, IRONBAD_API_KEY, IRONBAD_MODE, IRONBAD_THEME,
  IRONBAD_CACHE_PATH, IRONBAD_STORAGE_DIR, IRONBAD_MAX_FPS
`)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// LoadConfig loads configuration, exiting with a clear message when the
// config file is present but invalid.
func LoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// NewAPIClient builds the backend client from configuration.
func NewAPIClient(cfg *config.Config) *api.Client {
	return api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		APIKey:            cfg.API.Key,
		Timeout:           time.Duration(cfg.API.TimeoutSecs) * time.Second,
		StreamTimeout:     time.Duration(cfg.API.StreamTimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})
}
