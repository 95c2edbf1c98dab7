// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// HighlightCode applies ANSI syntax highlighting to a fenced code block from
// clause or section markdown. Contract exports embed JSON and XML fragments
// (pricing tables, e-signature envelopes), so those are the common languages
// here. Unknown languages fall back to lexer analysis, then plain text.
func HighlightCode(code, language, styleName string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// HighlightFences rewrites each fenced code block in markdown with its
// highlighted form, leaving the surrounding prose untouched. Used for
// clause text shown outside the glamour renderer.
func HighlightFences(markdown, styleName string) string {
	lines := strings.Split(markdown, "\n")
	var out []string
	var fence []string
	var lang string
	inFence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if !inFence {
				inFence = true
				lang = strings.TrimPrefix(trimmed, "```")
				fence = fence[:0]
				continue
			}
			inFence = false
			out = append(out, HighlightCode(strings.Join(fence, "\n"), lang, styleName))
			continue
		}
		if inFence {
			fence = append(fence, line)
			continue
		}
		out = append(out, line)
	}
	// Unterminated fence: emit it raw
	if inFence {
		out = append(out, fence...)
	}
	return strings.Join(out, "\n")
}
