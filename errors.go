package forky

import (
	"errors"
	"fmt"
)

// Service-level errors surfaced to front-ends. Node-level reference errors
// (unknown node, invalid parent, delete constraints) live in package graph
// and pass through unchanged so callers can branch on them with errors.Is.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrBusy                 = errors.New("conversation is busy")
)

// Model provider failures.
var (
	ErrModelTimeout     = errors.New("model request timed out")
	ErrModelUnavailable = errors.New("model unavailable")
)

// Merge ineligibility reasons. These are stable reason codes, not display
// strings.
const (
	ReasonSelfMerge          = "cannot_merge_node_with_itself"
	ReasonAncestorDescendant = "cannot_merge_ancestor_with_descendant"
	ReasonNoCommonAncestor   = "no_common_ancestor_found"
)

// MergeIneligibleError reports why two nodes cannot be merged.
type MergeIneligibleError struct {
	Reason string
}

func (e *MergeIneligibleError) Error() string {
	return fmt.Sprintf("merge ineligible: %s", e.Reason)
}

// CorruptStoreError indicates a persisted conversation failed invariant
// validation on load.
type CorruptStoreError struct {
	ConversationID string
	Detail         error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store: conversation %s: %v", e.ConversationID, e.Detail)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Detail
}

// SummarizationError indicates the summarizer exhausted its retries. Merges
// continue in structural-only mode when this occurs.
type SummarizationError struct {
	NodeID string
	Detail error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed for node %s: %v", e.NodeID, e.Detail)
}

func (e *SummarizationError) Unwrap() error {
	return e.Detail
}
