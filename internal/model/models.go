// SPDX-License-Identifier: AGPL-3.0-only
package model

import "slices"

// Tool names
const (
	ToolChat = "openai_chat"
	ToolPlan = "openai_plan"
)

// DefaultChatModel is the general-purpose flagship model used when openai_chat
// is called without a model.
const DefaultChatModel = "gpt-4o"

// ChatModels is the closed set of models accepted by openai_chat
var ChatModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"o1",
	"o1-preview",
	"o1-mini",
}

// DefaultPlanModel is the reasoning model used when openai_plan is called
// without a model. It is the dated identifier, not the advertised alias.
const DefaultPlanModel = "o1-2024-12-17"

// AdvertisedPlanModel is the default shown in the openai_plan input schema.
const AdvertisedPlanModel = "o1"

// PlanModels is the closed set of models accepted by openai_plan
var PlanModels = []string{
	"o1-2024-12-17",
	"o1-preview",
	"o1-mini",
}

// AdvertisedPlanModels is the model enum published in the openai_plan schema.
// It includes the "o1" alias, which validation does not accept.
var AdvertisedPlanModels = []string{
	AdvertisedPlanModel,
	"o1-2024-12-17",
	"o1-preview",
	"o1-mini",
}

// Reasoning effort levels
const (
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
)

// ReasoningEfforts lists the accepted reasoning_effort values
var ReasoningEfforts = []string{EffortLow, EffortMedium, EffortHigh}

// DefaultReasoningEffort is used when reasoning_effort is absent
const DefaultReasoningEffort = EffortLow

// IsChatModel reports whether m is accepted by openai_chat
func IsChatModel(m string) bool {
	return slices.Contains(ChatModels, m)
}

// IsPlanModel reports whether m is accepted by openai_plan
func IsPlanModel(m string) bool {
	return slices.Contains(PlanModels, m)
}

// IsReasoningEffort reports whether e is a known reasoning effort
func IsReasoningEffort(e string) bool {
	return slices.Contains(ReasoningEfforts, e)
}
