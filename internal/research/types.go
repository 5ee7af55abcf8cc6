// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// QUERY SUBMISSION
// =============================================================================

const (
	// DefaultBudget is the token budget sent with every question.
	DefaultBudget = 1000000

	// DefaultMaxBadAttempt is the number of failed answers the agent may
	// produce before giving up.
	DefaultMaxBadAttempt = 3

	// MaxQuestionLength bounds the question size accepted by the relay.
	MaxQuestionLength = 100000
)

var validate = validator.New()

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Q             string `json:"q" validate:"required,max=100000"`
	Budget        int    `json:"budget" validate:"min=1"`
	MaxBadAttempt int    `json:"maxBadAttempt" validate:"min=0"`
}

// NewQueryRequest builds a request with the default budget and attempt limit.
// The question is trimmed and NFC-normalized.
func NewQueryRequest(question string) QueryRequest {
	return QueryRequest{
		Q:             NormalizeQuestion(question),
		Budget:        DefaultBudget,
		MaxBadAttempt: DefaultMaxBadAttempt,
	}
}

// NormalizeQuestion trims surrounding whitespace and applies Unicode NFC.
func NormalizeQuestion(q string) string {
	return norm.NFC.String(strings.TrimSpace(q))
}

// Validate reports whether the request is acceptable to the backend.
func (r QueryRequest) Validate() error {
	if strings.TrimSpace(r.Q) == "" {
		return ErrEmptyQuestion
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid field %s: failed %q constraint", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// QueryResponse is the reply to POST /api/query.
type QueryResponse struct {
	RequestID string `json:"requestId"`
}

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = errors.New("question is empty")

// =============================================================================
// EVENT PAYLOADS
// =============================================================================

// TokenBreakdown splits token usage by consumer. Counts are JSON numbers
// and may be fractional.
type TokenBreakdown struct {
	Agent float64 `json:"agent,omitempty"`
	Read  float64 `json:"read,omitempty"`
}

// Trackers carries the agent's resource counters. Keys the client does not
// know about are kept in Extra.
type Trackers struct {
	TokenUsage     float64                    `json:"tokenUsage,omitempty"`
	TokenBreakdown *TokenBreakdown            `json:"tokenBreakdown,omitempty"`
	Extra          map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known tracker fields and stashes the rest.
func (t *Trackers) UnmarshalJSON(data []byte) error {
	type known Trackers
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	delete(all, "tokenUsage")
	delete(all, "tokenBreakdown")
	*t = Trackers(k)
	if len(all) > 0 {
		t.Extra = all
	}
	return nil
}

// MarshalJSON re-emits the known fields merged with Extra.
func (t Trackers) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+2)
	for k, v := range t.Extra {
		out[k] = v
	}
	if t.TokenUsage != 0 {
		out["tokenUsage"] = t.TokenUsage
	}
	if t.TokenBreakdown != nil {
		out["tokenBreakdown"] = t.TokenBreakdown
	}
	return json.Marshal(out)
}

// ActionState describes what the agent did during a step.
type ActionState struct {
	Action            string   `json:"action"`
	Thoughts          string   `json:"thoughts"`
	URLTargets        []string `json:"URLTargets,omitempty"`
	Answer            string   `json:"answer,omitempty"`
	QuestionsToAnswer []string `json:"questionsToAnswer,omitempty"`
	References        []string `json:"references,omitempty"`
	SearchQuery       string   `json:"searchQuery,omitempty"`
}

// Evaluation is the agent's judgement of an interim answer.
type Evaluation struct {
	Definitive bool   `json:"definitive"`
	Reason     string `json:"reason,omitempty"`
}
