// Package mcp exposes the phase workflow as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/models"
	"github.com/jmfell/phasegate/internal/workflow"
)

// Server wraps the workflow orchestrator and exposes it as MCP tools.
type Server struct {
	wf      *workflow.Workflow
	catalog *catalog.Catalog
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(wf *workflow.Workflow, cat *catalog.Catalog, version string) *Server {
	return &Server{wf: wf, catalog: cat, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("phasegate", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.startSessionTool())
	srv.AddTool(s.advancePhaseTool())
	srv.AddTool(s.completePhaseTool())
	srv.AddTool(s.validatePhaseTool())
	srv.AddTool(s.sessionStatusTool())
	srv.AddTool(s.resetSessionTool())
	srv.AddTool(s.evaluatePivotTool())
	srv.AddTool(s.enforceConsistencyTool())
	srv.AddTool(s.listCatalogTool())
	srv.AddTool(s.listSessionsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// toolError converts any orchestration failure into a structured MCP
// error payload carrying the stable code and context fields.
func toolError(action string, err error) *mcp.CallToolResult {
	e := models.AsError(action, err)
	payload := map[string]any{
		"code":    string(e.Code),
		"message": e.Message,
	}
	if e.Field != "" {
		payload["field"] = e.Field
	}
	if e.SessionID != "" {
		payload["session_id"] = e.SessionID
	}
	if e.Action != "" {
		payload["action"] = e.Action
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		return mcp.NewToolResultError(e.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// phasegate_start_session
func (s *Server) startSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_start_session",
		mcp.WithDescription("Start (or restart) a design session. Initializes the methodology's phases with the first phase in progress and zeroed coverage. Starting an existing session id overwrites it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Unique session identifier (caller-chosen)")),
		mcp.WithString("goal", mcp.Description("What this design effort is trying to achieve")),
		mcp.WithString("context", mcp.Description("Background context for the effort")),
		mcp.WithString("requirements", mcp.Description("Comma-separated requirement statements")),
		mcp.WithString("constraints", mcp.Description("Comma-separated constraint ids from the catalog, or 'all' (default) or 'none'")),
		mcp.WithNumber("coverage_threshold", mcp.Description("Overall coverage threshold 0-100 (default from catalog rules)")),
		mcp.WithBoolean("enable_pivots", mcp.Description("Run the pivot evaluator during advance (default false)")),
	)
	return tool, s.handleStartSession
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("start", models.MissingField("session_id")), nil
	}

	constraints, err := s.resolveConstraints(request.GetString("constraints", "all"))
	if err != nil {
		return toolError("start", err), nil
	}

	config := models.SessionConfig{
		SessionID:         sessionID,
		Goal:              request.GetString("goal", ""),
		Context:           request.GetString("context", ""),
		Requirements:      splitList(request.GetString("requirements", "")),
		Constraints:       constraints,
		CoverageThreshold: request.GetFloat("coverage_threshold", s.catalog.Rules.OverallMinimum),
		EnablePivots:      request.GetBool("enable_pivots", false),
	}

	result, err := s.wf.Start(config)
	if err != nil {
		return toolError("start", err), nil
	}

	out := map[string]any{
		"session_id":    result.SessionID,
		"current_phase": result.CurrentPhase,
		"phase_order":   result.PhaseOrder,
		"status":        string(result.Status),
		"coverage":      snapshotOut(result.Coverage),
		"constraints":   len(constraints),
	}
	return marshalResult("start", out)
}

// phasegate_advance_phase
func (s *Server) advancePhaseTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_advance_phase",
		mcp.WithDescription("Evaluate content against the current phase and advance to the next phase when the confirmation passes. A failed confirmation records coverage but does not move the session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("content", mcp.Description("The artifact text to evaluate for the current phase")),
	)
	return tool, s.handleAdvancePhase
}

func (s *Server) handleAdvancePhase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("advance", models.MissingField("session_id")), nil
	}

	result, err := s.wf.Advance(sessionID, request.GetString("content", ""))
	if err != nil {
		return toolError("advance", err), nil
	}

	out := map[string]any{
		"success":        result.Success,
		"message":        result.Message,
		"phase":          result.Phase,
		"session_status": string(result.SessionStatus),
	}
	if result.NextPhase != "" {
		out["next_phase"] = result.NextPhase
	}
	if result.Confirmation != nil {
		out["confirmation"] = confirmationOut(result.Confirmation)
	}
	if result.Pivot != nil {
		out["pivot"] = pivotOut(result.Pivot)
	}
	return marshalResult("advance", out)
}

// phasegate_complete_phase
func (s *Server) completePhaseTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_complete_phase",
		mcp.WithDescription("Explicitly mark a phase completed with the given content's coverage. Back-filling a phase other than the current one is allowed and does not move the session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("phase_id", mcp.Required(), mcp.Description("Phase to complete")),
		mcp.WithString("content", mcp.Required(), mcp.Description("The artifact text backing the completion")),
	)
	return tool, s.handleCompletePhase
}

func (s *Server) handleCompletePhase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("complete", models.MissingField("session_id")), nil
	}
	phaseID, err := request.RequireString("phase_id")
	if err != nil {
		return toolError("complete", models.MissingField("phase_id")), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return toolError("complete", models.MissingField("content")), nil
	}

	result, err := s.wf.Complete(sessionID, phaseID, content)
	if err != nil {
		return toolError("complete", err), nil
	}

	out := map[string]any{
		"success":   result.Success,
		"message":   result.Message,
		"phase":     result.Phase,
		"coverage":  result.Coverage,
		"artifacts": result.Artifacts,
	}
	return marshalResult("complete", out)
}

// phasegate_validate_phase
func (s *Server) validatePhaseTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_validate_phase",
		mcp.WithDescription("Run the confirmation pipeline for the current phase without mutating the session. Returns the checklist, violations, actions, and questions."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("content", mcp.Description("The artifact text to validate")),
	)
	return tool, s.handleValidatePhase
}

func (s *Server) handleValidatePhase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("validate", models.MissingField("session_id")), nil
	}

	conf, err := s.wf.Validate(sessionID, request.GetString("content", ""))
	if err != nil {
		return toolError("validate", err), nil
	}
	return marshalResult("validate", confirmationOut(conf))
}

// phasegate_session_status
func (s *Server) sessionStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_session_status",
		mcp.WithDescription("Get the current phase, coverage snapshot, violations, and recommendations for a session. Read-only."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
	)
	return tool, s.handleSessionStatus
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("status", models.MissingField("session_id")), nil
	}

	result, err := s.wf.Status(sessionID)
	if err != nil {
		return toolError("status", err), nil
	}

	phases := make(map[string]string, len(result.Phases))
	for id, st := range result.Phases {
		phases[id] = string(st)
	}

	history := make([]map[string]any, len(result.History))
	for i, h := range result.History {
		history[i] = map[string]any{
			"timestamp":   h.Timestamp.Format(time.RFC3339),
			"type":        h.Type,
			"phase":       h.Phase,
			"description": h.Description,
		}
	}

	out := map[string]any{
		"session_id":      result.SessionID,
		"current_phase":   result.CurrentPhase,
		"status":          string(result.Status),
		"coverage":        snapshotOut(result.Coverage),
		"phases":          phases,
		"violations":      violationsOut(result.Violations),
		"recommendations": result.Recommendations,
		"history":         history,
	}
	return marshalResult("status", out)
}

// phasegate_reset_session
func (s *Server) resetSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_reset_session",
		mcp.WithDescription("Reset a session to its first phase with zeroed coverage. History is preserved and appended to."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
	)
	return tool, s.handleResetSession
}

func (s *Server) handleResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("reset", models.MissingField("session_id")), nil
	}

	result, err := s.wf.Reset(sessionID)
	if err != nil {
		return toolError("reset", err), nil
	}

	out := map[string]any{
		"session_id":    result.SessionID,
		"current_phase": result.CurrentPhase,
		"message":       result.Message,
	}
	return marshalResult("reset", out)
}

// phasegate_evaluate_pivot
func (s *Server) evaluatePivotTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_evaluate_pivot",
		mcp.WithDescription("Score the session's content for complexity and entropy and decide whether a change of approach is warranted. Returns ranked alternatives either way."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("content", mcp.Description("Current content to score")),
		mcp.WithString("trigger_reason", mcp.Description("Why the evaluation is requested: complexity, entropy, or coverage")),
		mcp.WithBoolean("force", mcp.Description("Force triggered=true regardless of scores")),
	)
	return tool, s.handleEvaluatePivot
}

func (s *Server) handleEvaluatePivot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("evaluate_pivot", models.MissingField("session_id")), nil
	}

	decision, err := s.wf.EvaluatePivot(sessionID,
		request.GetString("content", ""),
		request.GetString("trigger_reason", ""),
		request.GetBool("force", false))
	if err != nil {
		return toolError("evaluate_pivot", err), nil
	}
	return marshalResult("evaluate_pivot", pivotOut(decision))
}

// phasegate_enforce_consistency
func (s *Server) enforceConsistencyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_enforce_consistency",
		mcp.WithDescription("Compare the session's constraint treatment against recorded decisions from other sessions, score the divergence, and record this session's decisions."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("constraint_id", mcp.Description("Restrict the pass to one constraint")),
		mcp.WithString("phase_id", mcp.Description("Phase context for interactive prompts")),
		mcp.WithString("context", mcp.Description("Free-text rationale recorded with this session's decisions")),
		mcp.WithBoolean("strict", mcp.Description("Use the tighter divergence margin")),
	)
	return tool, s.handleEnforceConsistency
}

func (s *Server) handleEnforceConsistency(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("enforce_consistency", models.MissingField("session_id")), nil
	}

	result, err := s.wf.EnforceConsistency(ctx, sessionID,
		request.GetString("constraint_id", ""),
		request.GetString("phase_id", ""),
		request.GetBool("strict", false),
		request.GetString("context", ""))
	if err != nil {
		return toolError("enforce_consistency", err), nil
	}

	violations := make([]map[string]any, len(result.Violations))
	for i, v := range result.Violations {
		violations[i] = map[string]any{
			"constraint_id":    v.ConstraintID,
			"violation_type":   string(v.ViolationType),
			"severity":         string(v.Severity),
			"current_value":    v.CurrentValue,
			"historical_value": v.HistoricalValue,
			"divergence":       v.Divergence,
			"description":      v.Description,
		}
	}

	out := map[string]any{
		"session_id":        result.SessionID,
		"consistency_score": result.ConsistencyScore,
		"violations":        violations,
		"actions":           actionsOut(result.Actions),
		"prompts":           result.Prompts,
	}
	return marshalResult("enforce_consistency", out)
}

// phasegate_list_catalog
func (s *Server) listCatalogTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_list_catalog",
		mcp.WithDescription("List the methodology's phases and constraints, optionally filtered by constraint category."),
		mcp.WithString("category", mcp.Description("Constraint category filter")),
	)
	return tool, s.handleListCatalog
}

func (s *Server) handleListCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := request.GetString("category", "")

	phases := make([]map[string]any, len(s.catalog.Phases))
	for i, p := range s.catalog.Phases {
		phases[i] = map[string]any{
			"id":               p.ID,
			"name":             p.Name,
			"description":      p.Description,
			"min_coverage":     p.MinCoverage,
			"required_outputs": p.RequiredOutputs,
			"criteria":         p.Criteria,
			"depends_on":       p.DependsOn,
		}
	}

	constraints := s.catalog.Constraints
	if category != "" {
		constraints = s.catalog.ConstraintsByCategory(category)
	}
	cons := make([]map[string]any, len(constraints))
	for i, c := range constraints {
		cons[i] = map[string]any{
			"id":           c.ID,
			"name":         c.Name,
			"type":         string(c.Type),
			"category":     c.Category,
			"description":  c.Description,
			"keywords":     c.Validation.Keywords,
			"min_coverage": c.Validation.MinCoverage,
			"weight":       c.Weight,
			"mandatory":    c.Mandatory,
			"source":       c.Source,
		}
	}

	out := map[string]any{
		"phases":      phases,
		"constraints": cons,
		"categories":  s.catalog.Categories(),
	}
	return marshalResult("list_catalog", out)
}

// phasegate_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("phasegate_list_sessions",
		mcp.WithDescription("List the ids, current phase, and status of all in-memory sessions."),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := s.wf.Sessions()
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		state := s.wf.Session(id)
		if state == nil {
			continue
		}
		out = append(out, map[string]any{
			"session_id":    id,
			"current_phase": state.CurrentPhase,
			"status":        string(state.Status),
			"overall":       state.Coverage.Overall,
			"updated_at":    state.UpdatedAt.Format(time.RFC3339),
		})
	}
	return marshalResult("list_sessions", out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func marshalResult(action string, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(action, fmt.Errorf("marshal result: %w", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// resolveConstraints expands the constraints parameter into catalog
// constraints. "all" selects everything, "none" or empty selects nothing,
// anything else is a comma-separated id list.
func (s *Server) resolveConstraints(selector string) ([]models.Constraint, error) {
	switch strings.TrimSpace(strings.ToLower(selector)) {
	case "all":
		return append([]models.Constraint(nil), s.catalog.Constraints...), nil
	case "", "none":
		return nil, nil
	}

	var out []models.Constraint
	for _, id := range splitList(selector) {
		c := s.catalog.ConstraintByID(id)
		if c == nil {
			return nil, models.ValidationFailed("start", "unknown constraint id %q", id)
		}
		out = append(out, *c)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func snapshotOut(snap models.CoverageSnapshot) map[string]any {
	return map[string]any{
		"overall":       snap.Overall,
		"phases":        snap.Phases,
		"constraints":   snap.Constraints,
		"assumptions":   snap.Assumptions,
		"documentation": snap.Documentation,
		"test_coverage": snap.TestCoverage,
	}
}

func violationsOut(violations []models.Violation) []map[string]any {
	out := make([]map[string]any, len(violations))
	for i, v := range violations {
		out[i] = map[string]any{
			"type":          string(v.Type),
			"target_id":     v.TargetID,
			"severity":      string(v.Severity),
			"current_value": v.CurrentValue,
			"threshold":     v.Threshold,
			"gap":           v.Gap,
			"message":       v.Message,
		}
	}
	return out
}

func actionsOut(actions []models.EnforcementAction) []map[string]any {
	out := make([]map[string]any, len(actions))
	for i, a := range actions {
		m := map[string]any{
			"id":          a.ID,
			"type":        string(a.Type),
			"target_id":   a.TargetID,
			"description": a.Description,
			"interactive": a.Interactive,
			"priority":    string(a.Priority),
			"effort":      string(a.Effort),
		}
		if a.ConstraintID != "" {
			m["constraint_id"] = a.ConstraintID
		}
		out[i] = m
	}
	return out
}

func confirmationOut(conf *workflow.Confirmation) map[string]any {
	checklist := make([]map[string]any, len(conf.Checklist))
	for i, c := range conf.Checklist {
		checklist[i] = map[string]any{
			"name":    c.Name,
			"status":  string(c.Status),
			"details": c.Details,
		}
	}
	return map[string]any{
		"phase":           conf.Phase,
		"passed":          conf.Passed,
		"coverage":        snapshotOut(conf.Coverage),
		"violations":      violationsOut(conf.Violations),
		"actions":         actionsOut(conf.Actions),
		"checklist":       checklist,
		"questions":       conf.Questions,
		"next_steps":      conf.NextSteps,
		"recommendations": conf.Recommendations,
	}
}

func pivotOut(d *models.PivotDecision) map[string]any {
	alts := make([]map[string]any, len(d.Alternatives))
	for i, a := range d.Alternatives {
		alts[i] = map[string]any{
			"name":        a.Name,
			"pros":        a.Pros,
			"cons":        a.Cons,
			"feasibility": a.Feasibility,
		}
	}
	return map[string]any{
		"triggered":      d.Triggered,
		"reason":         d.Reason,
		"complexity":     d.Complexity,
		"entropy":        d.Entropy,
		"threshold":      d.Threshold,
		"alternatives":   alts,
		"recommendation": d.Recommendation,
	}
}
