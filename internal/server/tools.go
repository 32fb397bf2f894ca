// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/jolks/mcp-openai/internal/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition represents a tool that can be registered with the MCP server
type ToolDefinition struct {
	// Name is the name of the tool
	Name string

	// Description is a brief description of what the tool does
	Description string

	// Handler is the function that will be called when the tool is invoked
	Handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

	// InputSchema describes the tool arguments
	InputSchema *jsonschema.Schema
}

// toolDefinitions returns the tool catalog. The list is static; only the
// handlers are bound to s.
func (s *MCPServer) toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        model.ToolChat,
			Description: "Send a conversation to an OpenAI chat model and return the reply. Use for general-purpose generation, summarisation and second opinions.",
			Handler:     s.handleChat,
			InputSchema: chatInputSchema(),
		},
		{
			Name:        model.ToolPlan,
			Description: "Ask an OpenAI reasoning model to plan or analyse a task. Developer messages are replaced with the planner/executor collaboration protocol.",
			Handler:     s.handlePlan,
			InputSchema: planInputSchema(),
		},
	}
}

// registerTools adds every tool to the MCP server and indexes it by name for
// dispatch.
func (s *MCPServer) registerTools() {
	defs := s.toolDefinitions()
	s.tools = make(map[string]ToolDefinition, len(defs))
	for _, def := range defs {
		s.tools[def.Name] = def
		s.server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, def.Handler)
	}
}

func chatInputSchema() *jsonschema.Schema {
	message := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"role": {
				Type:        "string",
				Description: "Author of the message",
				Enum:        enumOf([]string{"system", "user", "assistant"}),
			},
			"content": {
				Type:        "string",
				Description: "Message text",
			},
		},
		Required: []string{"role", "content"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"messages": {
				Type:        "array",
				Description: "Conversation to send, oldest first",
				Items:       message,
			},
			"model": {
				Type:        "string",
				Description: "Chat model to use",
				Enum:        enumOf(model.ChatModels),
				Default:     stringDefault(model.DefaultChatModel),
			},
		},
		Required: []string{"messages"},
	}
}

func planInputSchema() *jsonschema.Schema {
	textPart := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"type": {Type: "string", Enum: enumOf([]string{"text"})},
			"text": {Type: "string"},
		},
		Required: []string{"type", "text"},
	}

	message := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"role": {
				Type:        "string",
				Description: "Author of the message. Developer content is replaced by the collaboration protocol.",
				Enum: enumOf([]string{
					model.RoleSystem.String(),
					model.RoleUser.String(),
					model.RoleAssistant.String(),
					model.RoleDeveloper.String(),
				}),
			},
			"content": {
				Description: "Message text, or a list of text parts",
				OneOf: []*jsonschema.Schema{
					{Type: "string"},
					{Type: "array", Items: textPart},
				},
			},
		},
		Required: []string{"role", "content"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"messages": {
				Type:        "array",
				Description: "Conversation to send, oldest first",
				Items:       message,
			},
			"model": {
				Type:        "string",
				Description: "Reasoning model to use",
				Enum:        enumOf(model.AdvertisedPlanModels),
				Default:     stringDefault(model.AdvertisedPlanModel),
			},
			"reasoning_effort": {
				Type:        "string",
				Description: "How much reasoning the model should spend",
				Enum:        enumOf(model.ReasoningEfforts),
				Default:     stringDefault(model.DefaultReasoningEffort),
			},
			"response_format": {
				Type:        "object",
				Description: "Output format. Only text is produced.",
				Properties: map[string]*jsonschema.Schema{
					"type": {Type: "string", Enum: enumOf([]string{"text"})},
				},
				Default: json.RawMessage(`{"type":"text"}`),
			},
		},
		Required: []string{"messages"},
	}
}

func enumOf(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringDefault(v string) json.RawMessage {
	return json.RawMessage(strconv.Quote(v))
}
