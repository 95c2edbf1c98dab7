// ironbad TUI - A terminal interface for contract review chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/etlundquist/ironbad-tui/internal/cache"
	"github.com/etlundquist/ironbad-tui/internal/cli"
	"github.com/etlundquist/ironbad-tui/internal/config"
	"github.com/etlundquist/ironbad-tui/internal/session"
	"github.com/etlundquist/ironbad-tui/internal/storage"
	uichat "github.com/etlundquist/ironbad-tui/internal/ui/chat"
	"github.com/etlundquist/ironbad-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdChat:
		if err := cli.HandleChat(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdContracts:
		if err := cli.HandleContracts(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdConfig:
		if err := cli.HandleConfig(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdCache:
		if err := cli.HandleCache(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		cli.HandleHelp()
		os.Exit(1)
	}
}

// =============================================================================
// TUI STARTUP
// =============================================================================

func runTUI(args []string) {
	cfg := cli.LoadConfig()
	client := cli.NewAPIClient(cfg)

	// The TUI owns the terminal, so diagnostics go to a file.
	logger := openLogFile()

	parser := cli.NewArgParser(args)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	contract, err := cli.ResolveContract(ctx, client, parser.Subcommand())
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Section cache is optional: a broken cache degrades to direct fetches.
	var sectionCache *cache.SectionCache
	if cachePath, err := cfg.CachePath(); err == nil {
		sectionCache, err = cache.Open(cache.Options{
			Path:       cachePath,
			TTL:        time.Duration(cfg.Cache.TTLHours) * time.Hour,
			MaxEntries: cfg.Cache.MaxEntries,
		})
		if err != nil {
			logger.Printf("section cache unavailable: %v", err)
		}
	}
	if sectionCache != nil {
		defer sectionCache.Close()
	}

	storageDir, err := cfg.StorageDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	snapshots, err := storage.NewThreadStore(storageDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	theme := styles.NewTheme(cfg.UI.Theme, cfg.UI.CodeTheme)
	controller := session.NewController(session.APIBackend{Client: client}, contract.ID, logger)

	model := uichat.New(uichat.Config{
		Contract: contract,
		Session:  controller,
		Sections: &uichat.CachedSectionSource{
			Fetcher: client,
			Cache:   sectionCache,
		},
		Snapshots:    snapshots,
		Theme:        theme,
		Mode:         cfg.Chat.Mode,
		ShowActivity: cfg.Chat.ShowActivity,
		MaxFPS:       cfg.UI.MaxFPS,
		Logger:       logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	model.Attach(p.Send)

	// Hot-reload chat and UI settings when config.toml changes.
	watcher := startConfigWatcher(p, logger)
	if watcher != nil {
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLogFile returns a logger writing to the config directory, falling
// back to discarding output when the directory is unusable.
func openLogFile() *log.Logger {
	dir, err := config.ConfigDir()
	if err == nil {
		if err := config.EnsureConfigDir(); err == nil {
			path := filepath.Join(dir, "ironbad.log")
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				return log.New(f, "", log.LstdFlags)
			}
		}
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}

// startConfigWatcher wires the fsnotify watcher to the running program.
// Returns nil when the config path cannot be resolved; the TUI runs fine
// without hot reload.
func startConfigWatcher(p *tea.Program, logger *log.Logger) *config.Watcher {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return nil
	}
	watcher, err := config.NewWatcher(path,
		func(cfg *config.Config) {
			p.Send(uichat.ConfigReloadedMsg{
				Mode:         cfg.Chat.Mode,
				ShowActivity: cfg.Chat.ShowActivity,
				Theme:        styles.NewTheme(cfg.UI.Theme, cfg.UI.CodeTheme),
			})
		},
		func(err error) {
			logger.Printf("config reload failed: %v", err)
		})
	if err != nil {
		logger.Printf("config watcher unavailable: %v", err)
		return nil
	}
	if err := watcher.Watch(); err != nil {
		logger.Printf("config watcher unavailable: %v", err)
		watcher.Close()
		return nil
	}
	return watcher
}
