package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClientStyle is the fast model's read of the client's communication style.
type ClientStyle string

const (
	StyleAnalytical ClientStyle = "analytical"
	StyleDriver     ClientStyle = "driver"
	StyleAmiable    ClientStyle = "amiable"
	StyleExpressive ClientStyle = "expressive"
)

// ValidClientStyle reports whether s belongs to the allowed style set.
func ValidClientStyle(s ClientStyle) bool {
	switch s {
	case StyleAnalytical, StyleDriver, StyleAmiable, StyleExpressive:
		return true
	}
	return false
}

// FastReply is the parsed fast path output: the coached response plus the
// follow-up strategy fields.
type FastReply struct {
	SuggestedResponse  string      `json:"suggested_response"`
	SuggestedQuestions []string    `json:"suggested_questions"`
	OptionalFollowup   *string     `json:"optional_followup"`
	SellerQuestions    []string    `json:"seller_questions"`
	ClientStyle        ClientStyle `json:"client_style"`
	ConfidenceScore    float64     `json:"confidence_score"`
	ConfidenceReason   string      `json:"confidence_reason"`
}

// ParseFastReply validates the fast model's JSON output. A present but
// out-of-set client_style degrades to analytical rather than failing the
// whole turn; an empty suggested_response fails it.
func ParseFastReply(data []byte) (*FastReply, error) {
	var reply FastReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("fast reply is not valid JSON: %w", err)
	}
	if strings.TrimSpace(reply.SuggestedResponse) == "" {
		return nil, fmt.Errorf("suggested_response missing or empty")
	}
	if !ValidClientStyle(reply.ClientStyle) {
		reply.ClientStyle = StyleAnalytical
	}
	if reply.ConfidenceScore < 0 {
		reply.ConfidenceScore = 0
	}
	if reply.ConfidenceScore > 1 {
		reply.ConfidenceScore = 1
	}
	if reply.SuggestedQuestions == nil {
		reply.SuggestedQuestions = []string{}
	}
	if reply.SellerQuestions == nil {
		reply.SellerQuestions = []string{}
	}
	return &reply, nil
}

// EncodeMeta packs the non-response fields into a single structured string
// for the fast_meta conversation entry.
func (r *FastReply) EncodeMeta() string {
	meta := struct {
		SuggestedQuestions []string    `json:"suggested_questions"`
		OptionalFollowup   *string     `json:"optional_followup"`
		SellerQuestions    []string    `json:"seller_questions"`
		ClientStyle        ClientStyle `json:"client_style"`
		ConfidenceScore    float64     `json:"confidence_score"`
		ConfidenceReason   string      `json:"confidence_reason"`
	}{r.SuggestedQuestions, r.OptionalFollowup, r.SellerQuestions, r.ClientStyle, r.ConfidenceScore, r.ConfidenceReason}
	data, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Refinement is the corrective loop's output document.
type Refinement struct {
	RefinedSuggestion string `json:"refined_suggestion"`
}

// ParseRefinement validates the refinement output.
func ParseRefinement(data []byte) (*Refinement, error) {
	var ref Refinement
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("refinement is not valid JSON: %w", err)
	}
	if strings.TrimSpace(ref.RefinedSuggestion) == "" {
		return nil, fmt.Errorf("refined_suggestion missing or empty")
	}
	return &ref, nil
}
