// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"

	"github.com/jolks/mcp-openai/internal/errors"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const methodCallTool = "tools/call"

// dispatchMiddleware sits in front of the SDK's tool lookup. Unknown tool
// names fail with method-not-found, and known tools run one at a time.
func (s *MCPServer) dispatchMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if method != methodCallTool {
			return next(ctx, method, req)
		}
		call, ok := req.(*mcp.CallToolRequest)
		if !ok || call.Params == nil {
			return next(ctx, method, req)
		}

		if _, known := s.tools[call.Params.Name]; !known {
			s.logger.Warnf("Rejecting call to unknown tool %q", call.Params.Name)
			return nil, &jsonrpc.Error{
				Code:    jsonrpc.CodeMethodNotFound,
				Message: errors.UnknownTool(call.Params.Name).Error(),
			}
		}

		s.callMu.Lock()
		defer s.callMu.Unlock()
		return next(ctx, method, req)
	}
}
