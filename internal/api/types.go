// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"time"

	"github.com/etlundquist/ironbad-tui/internal/chat"
)

// =============================================================================
// CONTRACT RESOURCES
// =============================================================================

// ContractMetadata is the extracted document metadata for a processed
// contract.
type ContractMetadata struct {
	DocumentType  string  `json:"document_type"`
	DocumentTitle *string `json:"document_title,omitempty"`
	CustomerName  *string `json:"customer_name,omitempty"`
	SupplierName  *string `json:"supplier_name,omitempty"`
	EffectiveDate *string `json:"effective_date,omitempty"`
	InitialTerm   *string `json:"initial_term,omitempty"`
}

// Contract is one uploaded contract document and its processing state.
type Contract struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Filename  string            `json:"filename"`
	Filetype  string            `json:"filetype"`
	Meta      *ContractMetadata `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Title returns the best display name for the contract.
func (c *Contract) Title() string {
	if c.Meta != nil && c.Meta.DocumentTitle != nil && *c.Meta.DocumentTitle != "" {
		return *c.Meta.DocumentTitle
	}
	return c.Filename
}

// Section is one structural unit of a parsed contract, addressable by its
// dotted section number and page span.
type Section struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	Type       string    `json:"type"`
	Level      int       `json:"level"`
	Number     string    `json:"number"`
	Name       *string   `json:"name,omitempty"`
	Markdown   string    `json:"markdown"`
	BegPage    int       `json:"beg_page"`
	EndPage    int       `json:"end_page"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clause is a contract clause matched to a standard clause definition.
type Clause struct {
	ID               string   `json:"id"`
	StandardClauseID string   `json:"standard_clause_id"`
	ContractID       string   `json:"contract_id"`
	ContractSections []string `json:"contract_sections"`
	RawMarkdown      string   `json:"raw_markdown"`
	CleanedMarkdown  string   `json:"cleaned_markdown"`
}

// Issue is a detected policy violation within a contract clause.
type Issue struct {
	ID                   string          `json:"id"`
	StandardClauseID     string          `json:"standard_clause_id"`
	StandardClauseRuleID string          `json:"standard_clause_rule_id"`
	ContractID           string          `json:"contract_id"`
	Explanation          string          `json:"explanation"`
	Status               string          `json:"status"`
	Citations            []chat.Citation `json:"citations"`
	SuggestedText        *string         `json:"suggested_text,omitempty"`
	ResolvedText         *string         `json:"resolved_text,omitempty"`
}

// =============================================================================
// REQUEST PAYLOADS
// =============================================================================

// ChatMessageCreate starts or continues a contract chat stream.
type ChatMessageCreate struct {
	ContractID   string  `json:"contract_id"`
	ChatThreadID *string `json:"chat_thread_id,omitempty"`
	Content      string  `json:"content"`
}

// AgentRunRequest starts or continues an agent run stream.
type AgentRunRequest struct {
	ContractID   string              `json:"contract_id"`
	Content      string              `json:"content"`
	ChatThreadID *string             `json:"chat_thread_id,omitempty"`
	Attachments  chat.AttachmentList `json:"attachments,omitempty"`
}
