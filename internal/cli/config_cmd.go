// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/etlundquist/ironbad-tui/internal/config"
)

// HandleConfig implements "ironbad config <init|show|path>".
func HandleConfig(args []string) error {
	parser := NewArgParser(args)

	switch parser.Subcommand() {
	case "init":
		return configInit(parser.BoolFlag("force"))
	case "show", "":
		return configShow()
	case "path":
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		fmt.Println(filepath.Join(dir, "config.toml"))
		return nil
	default:
		return fmt.Errorf("unknown config subcommand %q (want init, show, or path)", parser.Subcommand())
	}
}

// configInit writes a default config.toml, refusing to clobber an existing
// file unless --force is given.
func configInit(force bool) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.toml")

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.SaveTOML(config.Default(), path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// configShow prints the effective configuration (file + env overrides +
// defaults) as TOML.
func configShow() error {
	cfg := LoadConfig()
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}
