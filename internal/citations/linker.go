// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citations turns bracketed section references in assistant text
// into page-navigation targets resolved against the message's citation
// list.
package citations

import (
	"regexp"
	"strings"

	"github.com/etlundquist/ironbad-tui/internal/chat"
)

// =============================================================================
// CITATION LINKING
// =============================================================================

// Target is a resolved navigation destination within the contract document.
type Target struct {
	SectionID     string
	SectionNumber string
	SectionName   *string
	Page          int
}

// Segment is one run of output text. Target is nil for literal text and
// non-nil for an actionable citation reference.
type Segment struct {
	Text   string
	Target *Target
}

// groupRe matches a bracketed citation group: one or more dotted section
// numbers separated by commas, e.g. [3], [3.2], [3.2, 4.1.7]. Brackets
// containing anything else (markdown links, checklists) never match.
var groupRe = regexp.MustCompile(`\[(\d+(?:\.\d+)*(?:\s*,\s*\d+(?:\.\d+)*)*)\]`)

// Link splits rendered text into literal and actionable segments. A
// reference becomes actionable only when the citation list resolves its
// section number to a known beginning page; unresolved references stay
// literal text. A group with at least one resolvable member, like
// [3.2, 4.1], is split into one bracket per member so the resolvable part
// is still actionable; a fully unresolved group passes through untouched.
// Linking is idempotent: re-running it over the concatenated segment texts
// yields the same segmentation.
func Link(text string, citations []chat.Citation) []Segment {
	index := buildIndex(citations)
	if len(index) == 0 {
		return literal(text)
	}

	var segs []Segment
	rest := text
	for {
		loc := groupRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		if loc[0] > 0 {
			segs = append(segs, Segment{Text: rest[:loc[0]]})
		}
		segs = append(segs, expandGroup(rest[loc[0]:loc[1]], rest[loc[2]:loc[3]], index)...)
		rest = rest[loc[1]:]
	}
	if rest != "" {
		segs = append(segs, Segment{Text: rest})
	}
	if segs == nil {
		return literal(text)
	}
	return segs
}

// expandGroup turns one bracket group into segments. A group none of whose
// members resolve is returned verbatim as a single literal. Otherwise each
// member gets its own bracket, actionable when resolved and literal when
// not, with the comma separators preserved between them.
func expandGroup(whole, inner string, index map[string]Target) []Segment {
	members := strings.Split(inner, ",")
	resolvable := false
	for _, member := range members {
		if _, ok := index[strings.TrimSpace(member)]; ok {
			resolvable = true
			break
		}
	}
	if !resolvable {
		return []Segment{{Text: whole}}
	}
	segs := make([]Segment, 0, 2*len(members))
	for i, member := range members {
		if i > 0 {
			segs = append(segs, Segment{Text: ","})
		}
		// Whitespace around a member belongs outside its bracket.
		trimmed := strings.TrimSpace(member)
		lead := member[:strings.Index(member, trimmed)]
		trail := member[len(lead)+len(trimmed):]
		if lead != "" {
			segs = append(segs, Segment{Text: lead})
		}
		if target, ok := index[trimmed]; ok {
			t := target
			segs = append(segs, Segment{Text: "[" + trimmed + "]", Target: &t})
		} else {
			segs = append(segs, Segment{Text: "[" + trimmed + "]"})
		}
		if trail != "" {
			segs = append(segs, Segment{Text: trail})
		}
	}
	return segs
}

// buildIndex maps section numbers to targets, keeping only citations that
// carry a beginning page. A citation without a page cannot be navigated to.
func buildIndex(citations []chat.Citation) map[string]Target {
	index := make(map[string]Target, len(citations))
	for _, c := range citations {
		if c.BegPage == nil || c.SectionNumber == "" {
			continue
		}
		if _, exists := index[c.SectionNumber]; exists {
			continue
		}
		index[c.SectionNumber] = Target{
			SectionID:     c.SectionID,
			SectionNumber: c.SectionNumber,
			SectionName:   c.SectionName,
			Page:          *c.BegPage,
		}
	}
	return index
}

func literal(text string) []Segment {
	if text == "" {
		return nil
	}
	return []Segment{{Text: text}}
}

// Targets returns the distinct actionable targets of a linked text in
// first-appearance order, for building a jump list.
func Targets(segs []Segment) []Target {
	var out []Target
	seen := make(map[string]bool)
	for _, s := range segs {
		if s.Target == nil || seen[s.Target.SectionNumber] {
			continue
		}
		seen[s.Target.SectionNumber] = true
		out = append(out, *s.Target)
	}
	return out
}
