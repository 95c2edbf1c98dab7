// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citations

import (
	"strings"
	"testing"

	"github.com/etlundquist/ironbad-tui/internal/chat"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func testCitations() []chat.Citation {
	return []chat.Citation{
		{SectionID: "s-32", SectionNumber: "3.2", SectionName: strPtr("Indemnification"), BegPage: intPtr(14), EndPage: intPtr(16)},
		{SectionID: "s-7", SectionNumber: "7", BegPage: intPtr(31)},
		{SectionID: "s-91", SectionNumber: "9.1", BegPage: nil}, // no page: never actionable
	}
}

func joined(segs []Segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func actionable(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.Target != nil {
			out = append(out, s)
		}
	}
	return out
}

func TestLinkSingleReference(t *testing.T) {
	segs := Link("Liability is capped in [3.2] of the agreement.", testCitations())

	acts := actionable(segs)
	if len(acts) != 1 {
		t.Fatalf("expected 1 actionable segment, got %d", len(acts))
	}
	if acts[0].Text != "[3.2]" {
		t.Errorf("actionable text = %q", acts[0].Text)
	}
	if acts[0].Target.Page != 14 {
		t.Errorf("target page = %d, want 14", acts[0].Target.Page)
	}
	if acts[0].Target.SectionID != "s-32" {
		t.Errorf("target section id = %q", acts[0].Target.SectionID)
	}
	if got := joined(segs); got != "Liability is capped in [3.2] of the agreement." {
		t.Errorf("concatenation changed text: %q", got)
	}
}

func TestLinkMixedGroupSplits(t *testing.T) {
	segs := Link("See [3.2] and [3.2, 4.1] for details.", testCitations())

	acts := actionable(segs)
	if len(acts) != 2 {
		t.Fatalf("expected 2 actionable segments, got %d", len(acts))
	}
	for i, seg := range acts {
		if seg.Text != "[3.2]" {
			t.Errorf("actionable[%d] text = %q, want [3.2]", i, seg.Text)
		}
		if seg.Target.Page != 14 {
			t.Errorf("actionable[%d] page = %d, want 14", i, seg.Target.Page)
		}
	}

	// The unresolvable member survives as bracketed literal text.
	got := joined(segs)
	if !strings.Contains(got, "[4.1]") {
		t.Errorf("unresolved member lost: %q", got)
	}
	if !strings.Contains(got, "[3.2], [4.1]") {
		t.Errorf("mixed group not split into separate brackets: %q", got)
	}
}

func TestLinkFullyUnresolvedGroupUntouched(t *testing.T) {
	text := "Compare [8.3, 8.4] with the schedule."
	segs := Link(text, testCitations())

	if len(actionable(segs)) != 0 {
		t.Error("unresolvable group became actionable")
	}
	if got := joined(segs); got != text {
		t.Errorf("unresolved group rewritten: %q", got)
	}
}

func TestLinkCitationWithoutPageStaysLiteral(t *testing.T) {
	segs := Link("Termination is covered in [9.1].", testCitations())
	if len(actionable(segs)) != 0 {
		t.Error("citation without beg_page became actionable")
	}
}

func TestLinkIgnoresNonCitationBrackets(t *testing.T) {
	text := "See [the exhibit](https://example.com) and [TODO] and [3.2]."
	segs := Link(text, testCitations())

	acts := actionable(segs)
	if len(acts) != 1 || acts[0].Text != "[3.2]" {
		t.Fatalf("actionable = %+v", acts)
	}
	if got := joined(segs); got != text {
		t.Errorf("non-citation brackets rewritten: %q", got)
	}
}

func TestLinkIdempotent(t *testing.T) {
	first := Link("See [3.2] and [3.2, 4.1] for details.", testCitations())
	second := Link(joined(first), testCitations())

	if joined(second) != joined(first) {
		t.Errorf("second pass changed text: %q -> %q", joined(first), joined(second))
	}
	if len(actionable(second)) != len(actionable(first)) {
		t.Errorf("second pass changed actionable count: %d -> %d",
			len(actionable(first)), len(actionable(second)))
	}
}

func TestLinkNoCitations(t *testing.T) {
	text := "Plain [3.2] reference with no citation list."
	segs := Link(text, nil)
	if len(segs) != 1 || segs[0].Target != nil || segs[0].Text != text {
		t.Errorf("segs = %+v", segs)
	}
}

func TestLinkEmptyText(t *testing.T) {
	if segs := Link("", testCitations()); segs != nil {
		t.Errorf("expected nil segments, got %+v", segs)
	}
}

func TestTargetsDeduplicated(t *testing.T) {
	segs := Link("[3.2] then [7] then [3.2] again.", testCitations())
	targets := Targets(segs)
	if len(targets) != 2 {
		t.Fatalf("expected 2 distinct targets, got %d", len(targets))
	}
	if targets[0].SectionNumber != "3.2" || targets[1].SectionNumber != "7" {
		t.Errorf("target order = %s, %s", targets[0].SectionNumber, targets[1].SectionNumber)
	}
}
