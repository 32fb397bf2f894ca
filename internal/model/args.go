// SPDX-License-Identifier: AGPL-3.0-only
package model

// ChatArgs are the arguments of openai_chat
type ChatArgs struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

// ResponseFormat is the requested output format for openai_plan
type ResponseFormat struct {
	Type string `json:"type"`
}

// PlanArgs are the arguments of openai_plan. ReasoningEffort is a pointer so
// that an absent value (defaulted) can be told apart from an explicit empty
// string (omitted downstream).
type PlanArgs struct {
	Messages        []Message       `json:"messages"`
	Model           string          `json:"model,omitempty"`
	ReasoningEffort *string         `json:"reasoning_effort,omitempty"`
	ResponseFormat  *ResponseFormat `json:"response_format,omitempty"`
}
