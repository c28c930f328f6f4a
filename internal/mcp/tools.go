// ABOUTME: MCP tool definitions and registration for the refinery server
// ABOUTME: Declares JSON schemas for refinement, history, review and reporting tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/refinery/internal/export"
	"github.com/harper/refinery/internal/logging"
	"github.com/harper/refinery/internal/refine"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, svc *refine.Service, exporter *export.Exporter, logger *zap.Logger) *Handlers {
	handlers := NewHandlers(svc, exporter, logger)
	for _, t := range handlers.Tools() {
		server.AddTool(t.Tool, t.Handler)
	}
	return handlers
}

// NewHandlers creates handlers without binding them to a server
func NewHandlers(svc *refine.Service, exporter *export.Exporter, logger *zap.Logger) *Handlers {
	return &Handlers{
		svc:      svc,
		exporter: exporter,
		logger:   logging.OrNop(logger).Named("mcp"),
		stop:     make(chan struct{}),
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": description,
	}
}

// Tools returns every tool definition paired with its handler
func (h *Handlers) Tools() []mcpserver.ServerTool {
	unitOnly := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"unit_id": stringProp("Unit ID"),
		},
		Required: []string{"unit_id"},
	}
	projectOnly := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"project_id": stringProp("Project ID"),
		},
		Required: []string{"project_id"},
	}

	return []mcpserver.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        "refine_unit",
				Description: "Refine one unit through the three-segment pipeline and make the result its active content.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"unit_id": stringProp("Unit ID to refine"),
						"model":   stringProp("Optional model key from list_models; defaults to the project's model"),
					},
					Required: []string{"unit_id"},
				},
			},
			Handler: h.RefineUnit,
		},
		{
			Tool: mcp.Tool{
				Name:        "refine_batch",
				Description: "Refine a contiguous range of units in order, chaining each result into the next unit's context.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"project_id": stringProp("Project ID"),
						"start":      numberProp("First unit number (inclusive)"),
						"end":        numberProp("Last unit number (inclusive)"),
						"model":      stringProp("Optional model key from list_models"),
						"background": map[string]interface{}{
							"type":        "boolean",
							"description": "Return at once and run the batch in the background (poll refinement_status)",
						},
					},
					Required: []string{"project_id", "start", "end"},
				},
			},
			Handler: h.RefineBatch,
		},
		{
			Tool: mcp.Tool{
				Name:        "get_diff",
				Description: "Show the latest completed refinement of a unit segment by segment, original beside refined.",
				InputSchema: unitOnly,
			},
			Handler: h.GetDiff,
		},
		{
			Tool: mcp.Tool{
				Name:        "rollback",
				Description: "Restore a unit's original text from its latest refinement. Refinement history is kept.",
				InputSchema: unitOnly,
			},
			Handler: h.Rollback,
		},
		{
			Tool: mcp.Tool{
				Name:        "list_models",
				Description: "List the models available for refinement and the default key.",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{},
				},
			},
			Handler: h.ListModels,
		},
		{
			Tool: mcp.Tool{
				Name:        "refinement_status",
				Description: "Report whether a project is idle, processing or completed, with per-status counts and interrupted units.",
				InputSchema: projectOnly,
			},
			Handler: h.RefinementStatus,
		},
		{
			Tool: mcp.Tool{
				Name:        "list_units",
				Description: "List a project's units with their refinement flags.",
				InputSchema: projectOnly,
			},
			Handler: h.ListUnits,
		},
		{
			Tool: mcp.Tool{
				Name:        "review_unit",
				Description: "Set the review status of a unit's latest completed refinement.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"unit_id": stringProp("Unit ID"),
						"status":  stringProp("approved, rejected or pending"),
						"comment": stringProp("Optional review comment"),
					},
					Required: []string{"unit_id", "status"},
				},
			},
			Handler: h.ReviewUnit,
		},
		{
			Tool: mcp.Tool{
				Name:        "review_summary",
				Description: "Count approved, rejected and pending reviews across a project's completed refinements.",
				InputSchema: projectOnly,
			},
			Handler: h.ReviewSummary,
		},
		{
			Tool: mcp.Tool{
				Name:        "export_diff_report",
				Description: "Render a Markdown report comparing original and refined text for every refined unit.",
				InputSchema: projectOnly,
			},
			Handler: h.ExportDiffReport,
		},
		{
			Tool: mcp.Tool{
				Name:        "resume_unit",
				Description: "Continue an interrupted refinement from its first unrefined segment.",
				InputSchema: unitOnly,
			},
			Handler: h.ResumeUnit,
		},
	}
}
