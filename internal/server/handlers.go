// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jolks/mcp-openai/internal/completion"
	"github.com/jolks/mcp-openai/internal/errors"
	"github.com/jolks/mcp-openai/internal/model"
	"github.com/jolks/mcp-openai/internal/utils"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Sampling settings for openai_chat. openai_plan sends neither.
const (
	chatTemperature = 0.7
	chatMaxTokens   = 2000
)

// errorPrefix starts the text of every domain failure envelope
const errorPrefix = "OpenAI API error: "

// handleChat forwards a conversation to a chat model
func (s *MCPServer) handleChat(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	call := s.beginCall(model.ToolChat)

	var args model.ChatArgs
	if err := extractParams(request, &args); err != nil {
		return call.fail(err)
	}
	if len(args.Messages) == 0 {
		return call.fail(errors.MissingArgument("messages"))
	}

	modelID := args.Model
	if modelID == "" {
		modelID = model.DefaultChatModel
	}
	call.record.Model = modelID
	if !model.IsChatModel(modelID) {
		return call.fail(errors.UnsupportedModel(model.ToolChat, modelID, model.ChatModels))
	}

	s.logger.Debugf("Handling %s request (model=%s, messages=%d)", model.ToolChat, modelID, len(args.Messages))

	resp, err := s.provider.CreateCompletion(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(modelID),
		Messages:    completion.ChatMessages(args.Messages),
		Temperature: openai.Float(chatTemperature),
		MaxTokens:   openai.Int(chatMaxTokens),
	})
	if err != nil {
		return call.fail(err)
	}

	return call.succeed(completion.FirstChoiceText(resp))
}

// handlePlan forwards a conversation to a reasoning model
func (s *MCPServer) handlePlan(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	call := s.beginCall(model.ToolPlan)

	var args model.PlanArgs
	if err := extractParams(request, &args); err != nil {
		return call.fail(err)
	}
	if len(args.Messages) == 0 {
		return call.fail(errors.MissingArgument("messages"))
	}

	modelID := args.Model
	if modelID == "" {
		modelID = model.DefaultPlanModel
	}
	call.record.Model = modelID
	if !model.IsPlanModel(modelID) {
		return call.fail(errors.UnsupportedModel(model.ToolPlan, modelID, model.PlanModels))
	}

	effort := model.DefaultReasoningEffort
	if args.ReasoningEffort != nil {
		effort = *args.ReasoningEffort
	}
	if effort != "" && !model.IsReasoningEffort(effort) {
		return call.fail(errors.InvalidInput(fmt.Sprintf("unsupported reasoning_effort %q (supported: low, medium, high)", effort)))
	}

	s.logger.Debugf("Handling %s request (model=%s, reasoning_effort=%q, messages=%d)",
		model.ToolPlan, modelID, effort, len(args.Messages))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: completion.PlanMessages(args.Messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfText: &shared.ResponseFormatTextParam{},
		},
	}
	if effort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(effort)
	}

	resp, err := s.provider.CreateCompletion(ctx, params)
	if err != nil {
		return call.fail(err)
	}

	return call.succeed(completion.FirstChoiceText(resp))
}

// extractParams extracts parameters from a tool request
func extractParams(request *mcp.CallToolRequest, params interface{}) error {
	if request == nil || request.Params == nil {
		return nil
	}
	if err := utils.JsonUnmarshal(request.Params.Arguments, params); err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid parameters: %v", err))
	}
	return nil
}

// createTextResponse wraps text in a success envelope
func createTextResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// createErrorResponse wraps a domain failure in an error envelope. Domain
// failures are never returned as Go errors, so the caller always gets a
// result it can show.
func createErrorResponse(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorPrefix + err.Error()},
		},
	}
}

// toolCall tracks one handled call for the history log
type toolCall struct {
	s      *MCPServer
	record *model.CallRecord
}

func (s *MCPServer) beginCall(tool string) *toolCall {
	return &toolCall{
		s: s,
		record: &model.CallRecord{
			Tool:      tool,
			StartTime: time.Now(),
		},
	}
}

func (c *toolCall) succeed(text string) (*mcp.CallToolResult, error) {
	c.finish(false, text)
	return createTextResponse(text), nil
}

func (c *toolCall) fail(err error) (*mcp.CallToolResult, error) {
	c.s.logger.WithField("tool", c.record.Tool).Warnf("Call failed: %v", err)
	result := createErrorResponse(err)
	c.finish(true, result.Content[0].(*mcp.TextContent).Text)
	return result, nil
}

func (c *toolCall) finish(isError bool, output string) {
	c.record.IsError = isError
	c.record.Output = output
	c.record.EndTime = time.Now()
	c.record.Duration = c.record.EndTime.Sub(c.record.StartTime).String()
	model.PersistAndLogCall(c.s.history, c.record, c.s.logger)
}
