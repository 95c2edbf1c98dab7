// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"strings"
	"testing"
)

// sampleAttachment builds one attachment of each kind. Extending the union
// without updating this helper fails TestAttachmentKindsExhaustive.
func sampleAttachment(t *testing.T, kind string) Attachment {
	t.Helper()
	switch kind {
	case KindPinnedSection:
		return &PinnedSectionAttachment{SectionNumber: "7.2"}
	case KindPinnedSectionText:
		return &PinnedSectionTextAttachment{SectionNumber: "7.2", TextSpan: "shall indemnify"}
	case KindPinnedPrecedentDocument:
		return &PinnedPrecedentDocumentAttachment{ContractID: "c-123"}
	case KindResponseCitations:
		return &ResponseCitationsAttachment{Citations: []Citation{{
			SectionID:     "s-1",
			SectionNumber: "7.2",
			BegPage:       intPtr(14),
		}}}
	default:
		t.Fatalf("no sample for attachment kind %q", kind)
		return nil
	}
}

func intPtr(v int) *int { return &v }

func TestAttachmentKindsExhaustive(t *testing.T) {
	for _, kind := range AllAttachmentKinds {
		t.Run(kind, func(t *testing.T) {
			att := sampleAttachment(t, kind)
			if att.AttachmentKind() != kind {
				t.Fatalf("sample reports kind %q", att.AttachmentKind())
			}

			data, err := json.Marshal(AttachmentList{att})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !strings.Contains(string(data), `"kind":"`+kind+`"`) {
				t.Errorf("discriminator missing from wire form: %s", data)
			}

			var decoded AttachmentList
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(decoded) != 1 {
				t.Fatalf("decoded %d attachments", len(decoded))
			}
			if decoded[0].AttachmentKind() != kind {
				t.Errorf("round-trip changed kind to %q", decoded[0].AttachmentKind())
			}
			if DisplayLabel(decoded[0]) == "" {
				t.Errorf("no display label for kind %q", kind)
			}
		})
	}
}

func TestAttachmentListUnknownKindRejected(t *testing.T) {
	var list AttachmentList
	err := json.Unmarshal([]byte(`[{"kind": "holographic_will", "payload": 1}]`), &list)
	if err == nil {
		t.Fatal("unknown kind accepted")
	}
	if !strings.Contains(err.Error(), "holographic_will") {
		t.Errorf("error does not name the kind: %v", err)
	}
}

func TestAttachmentListMixedRoundTrip(t *testing.T) {
	original := AttachmentList{
		&PinnedSectionAttachment{SectionNumber: "3.1"},
		&PinnedPrecedentDocumentAttachment{ContractID: "c-9"},
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded AttachmentList
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d attachments", len(decoded))
	}
	if got := decoded[0].(*PinnedSectionAttachment).SectionNumber; got != "3.1" {
		t.Errorf("section number = %q", got)
	}
	if got := decoded[1].(*PinnedPrecedentDocumentAttachment).ContractID; got != "c-9" {
		t.Errorf("contract id = %q", got)
	}
}

func TestMessageResponseCitationsFromAttachment(t *testing.T) {
	m := Message{
		ID:   "a1",
		Role: RoleAssistant,
		Attachments: AttachmentList{
			&ResponseCitationsAttachment{Citations: []Citation{
				{SectionID: "s-1", SectionNumber: "7.2", BegPage: intPtr(14)},
			}},
		},
	}
	cits := m.ResponseCitations()
	if len(cits) != 1 || cits[0].SectionNumber != "7.2" {
		t.Errorf("citations = %+v", cits)
	}
}
