// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// ATTACHMENT UNION
// =============================================================================

// Attachment is the tagged union carried on agent chat messages,
// discriminated on the wire by a "kind" field. Every consumer switching on
// the concrete type must handle all kinds; TestAttachmentKindsExhaustive
// fails the build of any new kind that is not wired through the codec.
type Attachment interface {
	AttachmentKind() string
}

// Attachment kind discriminators, as emitted by the backend.
const (
	KindPinnedSection           = "pinned_section"
	KindPinnedSectionText       = "pinned_section_text"
	KindPinnedPrecedentDocument = "pinned_precedent_document"
	KindResponseCitations       = "response_citations"
)

// AllAttachmentKinds enumerates every discriminator the codec understands.
// The exhaustiveness test iterates this list.
var AllAttachmentKinds = []string{
	KindPinnedSection,
	KindPinnedSectionText,
	KindPinnedPrecedentDocument,
	KindResponseCitations,
}

// PinnedSectionAttachment pins a whole contract section to a user message.
type PinnedSectionAttachment struct {
	SectionNumber string `json:"section_number"`
}

func (*PinnedSectionAttachment) AttachmentKind() string { return KindPinnedSection }

// PinnedSectionTextAttachment pins a text span within a contract section.
type PinnedSectionTextAttachment struct {
	SectionNumber string `json:"section_number"`
	TextSpan      string `json:"text_span"`
}

func (*PinnedSectionTextAttachment) AttachmentKind() string { return KindPinnedSectionText }

// PinnedPrecedentDocumentAttachment pins another contract as precedent.
type PinnedPrecedentDocumentAttachment struct {
	ContractID string `json:"contract_id"`
}

func (*PinnedPrecedentDocumentAttachment) AttachmentKind() string {
	return KindPinnedPrecedentDocument
}

// ResponseCitationsAttachment carries the resolved citations of a completed
// agent response.
type ResponseCitationsAttachment struct {
	Citations []Citation `json:"citations"`
}

func (*ResponseCitationsAttachment) AttachmentKind() string { return KindResponseCitations }

// =============================================================================
// JSON CODEC
// =============================================================================

// AttachmentList (de)serializes a heterogeneous attachment slice using the
// kind discriminator.
type AttachmentList []Attachment

// attachmentEnvelope wraps a concrete attachment with its discriminator for
// marshaling.
type attachmentEnvelope struct {
	Kind string `json:"kind"`
}

// MarshalJSON emits each attachment as its concrete object plus the kind
// field.
func (l AttachmentList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, att := range l {
		body, err := json.Marshal(att)
		if err != nil {
			return nil, err
		}
		// Splice the discriminator into the object.
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		kind, err := json.Marshal(att.AttachmentKind())
		if err != nil {
			return nil, err
		}
		fields["kind"] = kind
		merged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, merged)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes each element by its kind field. An unknown kind is
// an error: the codec must be extended in lockstep with the backend.
func (l *AttachmentList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	list := make(AttachmentList, 0, len(raws))
	for _, raw := range raws {
		var env attachmentEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return err
		}
		att, err := unmarshalAttachment(env.Kind, raw)
		if err != nil {
			return err
		}
		list = append(list, att)
	}
	*l = list
	return nil
}

// unmarshalAttachment decodes one attachment by discriminator. Handles
// every kind in AllAttachmentKinds.
func unmarshalAttachment(kind string, raw json.RawMessage) (Attachment, error) {
	switch kind {
	case KindPinnedSection:
		var a PinnedSectionAttachment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case KindPinnedSectionText:
		var a PinnedSectionTextAttachment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case KindPinnedPrecedentDocument:
		var a PinnedPrecedentDocumentAttachment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case KindResponseCitations:
		var a ResponseCitationsAttachment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return &a, nil
	default:
		return nil, fmt.Errorf("unknown attachment kind %q", kind)
	}
}

// DisplayLabel renders a short human-readable label for an attachment, used
// in the transcript above the message it decorates. Handles every kind in
// AllAttachmentKinds.
func DisplayLabel(att Attachment) string {
	switch a := att.(type) {
	case *PinnedSectionAttachment:
		return "pinned section " + a.SectionNumber
	case *PinnedSectionTextAttachment:
		return "pinned text from section " + a.SectionNumber
	case *PinnedPrecedentDocumentAttachment:
		return "pinned precedent document"
	case *ResponseCitationsAttachment:
		return fmt.Sprintf("%d citation(s)", len(a.Citations))
	default:
		return att.AttachmentKind()
	}
}
