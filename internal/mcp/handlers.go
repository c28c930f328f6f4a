// ABOUTME: MCP tool handler implementations for the refinery server
// ABOUTME: Maps tool arguments onto the refinement service and classifies failures
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/harper/refinery/internal/export"
	"github.com/harper/refinery/internal/models"
	"github.com/harper/refinery/internal/refine"
)

// Error kinds reported in failed tool results
const (
	kindNotFound     = "not_found"
	kindBusy         = "busy"
	kindPrecondition = "precondition"
	kindProcessing   = "processing"
	kindInternal     = "internal"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	svc      *refine.Service
	exporter *export.Exporter
	logger   *zap.Logger

	shutdownWg sync.WaitGroup // Track background batches
	stop       chan struct{}
	stopOnce   sync.Once
}

// RefineUnit handles the refine_unit tool
func (h *Handlers) RefineUnit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID, err := request.RequireString("unit_id")
	if err != nil {
		return mcp.NewToolResultError("unit_id argument is required and must be a string"), nil
	}

	result, err := h.svc.RefineUnit(ctx, unitID, refine.Options{Model: request.GetString("model", "")})
	if err != nil {
		return errorResult("refine_unit", err), nil
	}
	return jsonResult(result)
}

// RefineBatch handles the refine_batch tool
func (h *Handlers) RefineBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required and must be a string"), nil
	}
	req := refine.BatchRequest{
		ProjectID: projectID,
		Start:     request.GetInt("start", 0),
		End:       request.GetInt("end", 0),
		Model:     request.GetString("model", ""),
	}

	if request.GetBool("background", false) {
		// The batch outlives this call; Shutdown is what stops it
		events, err := h.svc.RefineBatch(context.WithoutCancel(ctx), req)
		if err != nil {
			return errorResult("refine_batch", err), nil
		}
		h.shutdownWg.Add(1)
		go func() {
			defer h.shutdownWg.Done()
			h.drain(req, events)
		}()
		return jsonResult(map[string]interface{}{
			"project_id": projectID,
			"start":      req.Start,
			"end":        req.End,
			"status":     "started",
		})
	}

	events := []models.BatchEvent{}
	summary, err := h.svc.RunBatch(ctx, req, func(ev models.BatchEvent) {
		events = append(events, ev)
	})
	if err != nil && len(events) == 0 {
		return errorResult("refine_batch", err), nil
	}

	response := map[string]interface{}{
		"project_id": projectID,
		"events":     events,
		"summary":    summary,
	}
	if err != nil {
		response["stopped"] = err.Error()
	}
	return jsonResult(response)
}

// drain consumes a background batch until it ends or Shutdown is called
func (h *Handlers) drain(req refine.BatchRequest, events iter.Seq[models.BatchEvent]) {
	var summary models.BatchSummary
	for ev := range events {
		summary.Add(ev)
		select {
		case <-h.stop:
			h.logger.Info("background batch stopped by shutdown",
				zap.String("project_id", req.ProjectID),
				zap.Int("last_unit", ev.UnitNumber))
			return
		default:
		}
	}
	h.logger.Info("background batch finished",
		zap.String("project_id", req.ProjectID),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
}

// GetDiff handles the get_diff tool
func (h *Handlers) GetDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID, err := request.RequireString("unit_id")
	if err != nil {
		return mcp.NewToolResultError("unit_id argument is required and must be a string"), nil
	}

	diff, err := h.svc.Diff(ctx, unitID)
	if err != nil {
		return errorResult("get_diff", err), nil
	}
	return jsonResult(diff)
}

// Rollback handles the rollback tool
func (h *Handlers) Rollback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID, err := request.RequireString("unit_id")
	if err != nil {
		return mcp.NewToolResultError("unit_id argument is required and must be a string"), nil
	}

	result, err := h.svc.Rollback(ctx, unitID)
	if err != nil {
		return errorResult("rollback", err), nil
	}
	return jsonResult(result)
}

// ListModels handles the list_models tool
func (h *Handlers) ListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.svc.ListModels())
}

// RefinementStatus handles the refinement_status tool
func (h *Handlers) RefinementStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required and must be a string"), nil
	}

	status, err := h.svc.ProjectStatus(ctx, projectID)
	if err != nil {
		return errorResult("refinement_status", err), nil
	}
	interrupted, err := h.svc.Interrupted(ctx, projectID)
	if err != nil {
		return errorResult("refinement_status", err), nil
	}

	resumable := make([]map[string]interface{}, 0, len(interrupted))
	for _, rec := range interrupted {
		resumable = append(resumable, map[string]interface{}{
			"unit_id":         rec.UnitID,
			"unit_number":     rec.UnitNumber,
			"refinement_id":   rec.ID,
			"status":          rec.Status,
			"current_segment": rec.CurrentSegment,
		})
	}

	return jsonResult(map[string]interface{}{
		"status":      status,
		"interrupted": resumable,
	})
}

// ListUnits handles the list_units tool
func (h *Handlers) ListUnits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required and must be a string"), nil
	}

	units, err := h.svc.ListUnits(ctx, projectID)
	if err != nil {
		return errorResult("list_units", err), nil
	}
	if units == nil {
		units = []models.UnitListing{}
	}
	return jsonResult(map[string]interface{}{
		"project_id": projectID,
		"units":      units,
		"count":      len(units),
	})
}

// ReviewUnit handles the review_unit tool
func (h *Handlers) ReviewUnit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID, err := request.RequireString("unit_id")
	if err != nil {
		return mcp.NewToolResultError("unit_id argument is required and must be a string"), nil
	}
	raw, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("status argument is required and must be a string"), nil
	}
	status, err := models.ParseReviewStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := h.svc.Review(ctx, unitID, status, request.GetString("comment", ""))
	if err != nil {
		return errorResult("review_unit", err), nil
	}
	return jsonResult(map[string]interface{}{
		"unit_id":        rec.UnitID,
		"refinement_id":  rec.ID,
		"version":        rec.Version,
		"review_status":  rec.ReviewStatus.Label(),
		"review_comment": rec.ReviewComment,
		"reviewed_at":    rec.ReviewedAt,
	})
}

// ReviewSummary handles the review_summary tool
func (h *Handlers) ReviewSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required and must be a string"), nil
	}

	summary, err := h.svc.ReviewSummary(ctx, projectID)
	if err != nil {
		return errorResult("review_summary", err), nil
	}
	return jsonResult(summary)
}

// ExportDiffReport handles the export_diff_report tool
func (h *Handlers) ExportDiffReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := request.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError("project_id argument is required and must be a string"), nil
	}
	if h.exporter == nil {
		return mcp.NewToolResultError("export is not configured"), nil
	}

	var buf bytes.Buffer
	if err := h.exporter.DiffReport(ctx, &buf, projectID); err != nil {
		return errorResult("export_diff_report", err), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// ResumeUnit handles the resume_unit tool
func (h *Handlers) ResumeUnit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitID, err := request.RequireString("unit_id")
	if err != nil {
		return mcp.NewToolResultError("unit_id argument is required and must be a string"), nil
	}

	result, err := h.svc.Resume(ctx, unitID)
	if err != nil {
		return errorResult("resume_unit", err), nil
	}
	return jsonResult(result)
}

// Shutdown stops background batches after their current unit and waits for them
func (h *Handlers) Shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.logger.Info("waiting for background batches to finish their current unit")
	h.shutdownWg.Wait()
	h.logger.Info("all background batches stopped")
}

// errorKind classifies err for the caller
func errorKind(err error) string {
	var perr *refine.ProcessingError
	switch {
	case errors.Is(err, refine.ErrNotFound), errors.Is(err, export.ErrProjectNotFound):
		return kindNotFound
	case errors.Is(err, refine.ErrUnitBusy):
		return kindBusy
	case errors.Is(err, refine.ErrPrecondition):
		return kindPrecondition
	case errors.As(err, &perr):
		return kindProcessing
	default:
		return kindInternal
	}
}

func errorResult(tool string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed [%s]: %v", tool, errorKind(err), err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
