// SPDX-License-Identifier: AGPL-3.0-only
package completion

import (
	_ "embed"

	"github.com/jolks/mcp-openai/internal/model"
	"github.com/openai/openai-go"
)

// InvalidContentText stands in for message content that was neither a string
// nor an array of parts.
const InvalidContentText = "[Invalid content format]"

// developerInstructions replaces the content of every developer message sent
// through openai_plan. Caller-supplied developer content is never forwarded.
//
//go:embed developer_instructions.md
var developerInstructions string

// DeveloperInstructions returns the fixed document injected for developer
// messages on the plan path.
func DeveloperInstructions() string {
	return developerInstructions
}

// ChatMessages converts caller messages for openai_chat. Array content is
// always joined into a single string, and developer messages are sent as
// assistant messages because the chat path has no developer role.
func ChatMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		out = append(out, toChatMessage(m))
	}
	return out
}

func toChatMessage(m model.Message) openai.ChatCompletionMessageParamUnion {
	if !m.Content.IsValid() {
		return fallbackMessage(m)
	}
	text := m.Content.Joined()
	switch m.Role {
	case model.RoleSystem:
		return openai.SystemMessage(text)
	case model.RoleUser:
		return openai.UserMessage(text)
	case model.RoleAssistant, model.RoleDeveloper:
		return openai.AssistantMessage(text)
	default:
		return fallbackMessage(m)
	}
}

// PlanMessages converts caller messages for openai_plan. Developer messages
// carry the fixed collaboration document regardless of their content; user
// and assistant array content is kept as typed text parts.
func PlanMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		out = append(out, toPlanMessage(m))
	}
	return out
}

func toPlanMessage(m model.Message) openai.ChatCompletionMessageParamUnion {
	if m.Role == model.RoleDeveloper {
		return openai.DeveloperMessage(developerInstructions)
	}
	if !m.Content.IsValid() {
		return fallbackMessage(m)
	}
	switch m.Role {
	case model.RoleSystem:
		return openai.SystemMessage(m.Content.Joined())
	case model.RoleUser:
		if m.Content.IsParts() {
			return openai.UserMessage(userParts(m.Content))
		}
		return openai.UserMessage(m.Content.Text())
	case model.RoleAssistant:
		if m.Content.IsParts() {
			return openai.AssistantMessage(assistantParts(m.Content))
		}
		return openai.AssistantMessage(m.Content.Text())
	default:
		return fallbackMessage(m)
	}
}

func userParts(c model.Content) []openai.ChatCompletionContentPartUnionParam {
	parts := c.TextParts()
	out := make([]openai.ChatCompletionContentPartUnionParam, len(parts))
	for i, p := range parts {
		out[i] = openai.TextContentPart(p.Text)
	}
	return out
}

func assistantParts(c model.Content) []openai.ChatCompletionAssistantMessageParamContentArrayOfContentPartUnion {
	parts := c.TextParts()
	out := make([]openai.ChatCompletionAssistantMessageParamContentArrayOfContentPartUnion, len(parts))
	for i, p := range parts {
		out[i] = openai.ChatCompletionAssistantMessageParamContentArrayOfContentPartUnion{
			OfText: &openai.ChatCompletionContentPartTextParam{Text: p.Text},
		}
	}
	return out
}

// fallbackMessage sends an unresolvable role/content combination as a user
// message, keeping the original string when there is one.
func fallbackMessage(m model.Message) openai.ChatCompletionMessageParamUnion {
	if m.Content.IsText() {
		return openai.UserMessage(m.Content.Text())
	}
	return openai.UserMessage(InvalidContentText)
}
