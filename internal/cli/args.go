// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser parses the arguments after the command word. It understands:
//
//	--flag value     long flag with space-separated value
//	--flag=value     long flag with equals sign
//	-f value         short flag with space-separated value
//	--flag           boolean flag
//
// plus bare positional arguments, the first of which is the subcommand.
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw arguments.
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if !strings.HasPrefix(arg, "-") {
			p.positional = append(p.positional, arg)
			i++
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimLeft(name, "-")
			if value == "true" || value == "false" {
				p.boolFlags[name] = value == "true"
			} else {
				p.flags[name] = value
			}
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags[name] = raw[i+1]
			i += 2
		} else {
			p.boolFlags[name] = true
			i++
		}
	}

	if len(p.positional) > 0 {
		p.subcommand = p.positional[0]
	}
	return p
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Positional returns all positional arguments.
func (p *ArgParser) Positional() []string {
	return p.positional
}

// Flag returns a string flag value, or "" when absent.
func (p *ArgParser) Flag(names ...string) string {
	for _, name := range names {
		if v, ok := p.flags[name]; ok {
			return v
		}
	}
	return ""
}

// BoolFlag reports whether a boolean flag was set. A flag given a value
// (e.g. --json=false) reports that value.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, name := range names {
		if v, ok := p.boolFlags[name]; ok {
			return v
		}
	}
	return false
}

// IntFlag returns an integer flag value, or def when absent or malformed.
func (p *ArgParser) IntFlag(def int, names ...string) int {
	for _, name := range names {
		if v, ok := p.flags[name]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return def
}
