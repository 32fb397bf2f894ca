// SPDX-License-Identifier: AGPL-3.0-only
package completion

import (
	"context"

	"github.com/openai/openai-go"
)

// NoResponseText replaces a completion that carries no text
const NoResponseText = "No response from OpenAI"

// ChatProvider abstracts the downstream chat-completion call so handlers can
// be exercised without network access.
type ChatProvider interface {
	// CreateCompletion issues exactly one chat completion request.
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// FirstChoiceText returns the content of the first choice, or NoResponseText
// when the completion has no choices or the first choice is empty.
func FirstChoiceText(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return NoResponseText
	}
	if text := resp.Choices[0].Message.Content; text != "" {
		return text
	}
	return NoResponseText
}
