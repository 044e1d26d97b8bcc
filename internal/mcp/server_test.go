package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfell/phasegate/internal/catalog"
	"github.com/jmfell/phasegate/internal/consistency"
	"github.com/jmfell/phasegate/internal/store"
	"github.com/jmfell/phasegate/internal/workflow"
)

// testMethodology keeps the phase requirements small enough to satisfy
// from the fixture content below.
const testMethodology = `
phases:
  - id: discovery
    name: Discovery
    min_coverage: 70
    required_outputs: [problem statement]
    criteria: [stakeholders identified]
  - id: design
    name: Design
    min_coverage: 70
    required_outputs: [component diagram]
    criteria: [interfaces defined]
    depends_on: [discovery]
constraints:
  security:
    - id: security
      name: Security
      keywords: [encryption, authentication]
      mandatory: true
      min_coverage: 70
`

const passingContent = `# Problem Statement

We assume the current tooling cannot keep the design process honest.
The stakeholders identified in early interviews want faster feedback loops.

## Approach

- Interview the maintainers about the pain points they see daily.
- Collect a problem statement from every team involved in the effort.
- Draft a test plan covering the riskiest integration points first.
- Document coverage targets for the unit test and integration test suites.

| Area | Owner |
| Discovery | Core team |

See the [charter](https://example.com/charter) for background.

` + "```\nphasegate validate artifact.md\n```\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.Parse([]byte(testMethodology))
	require.NoError(t, err)
	enforcer := consistency.NewEnforcer(store.NewMemoryStore(), cat.Rules)
	wf := workflow.New(cat, enforcer, false)
	return NewServer(wf, cat, "test")
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// startSession runs the start handler and fails the test on a tool error.
func startSession(t *testing.T, srv *Server, sessionID, constraints string) {
	t.Helper()
	result, err := srv.handleStartSession(context.Background(), callToolReq("phasegate_start_session", map[string]any{
		"session_id":  sessionID,
		"constraints": constraints,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "start failed: %s", resultText(t, result))
}

// ---------------------------------------------------------------------------
// Tests: server registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv := newTestServer(t)
	require.NotNil(t, srv.MCPServer(), "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: start session
// ---------------------------------------------------------------------------

func TestHandleStartSession(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleStartSession(context.Background(), callToolReq("phasegate_start_session", map[string]any{
		"session_id":  "s1",
		"constraints": "all",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "s1", out["session_id"])
	assert.Equal(t, "discovery", out["current_phase"])
	assert.Equal(t, "active", out["status"])
	assert.Equal(t, float64(1), out["constraints"])
}

func TestHandleStartSession_MissingSessionID(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleStartSession(context.Background(), callToolReq("phasegate_start_session", nil))
	require.NoError(t, err)
	require.True(t, result.IsError)

	var payload map[string]any
	resultJSON(t, result, &payload)
	assert.Equal(t, "missing_required_field", payload["code"])
	assert.Equal(t, "session_id", payload["field"])
}

func TestHandleStartSession_UnknownConstraint(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleStartSession(context.Background(), callToolReq("phasegate_start_session", map[string]any{
		"session_id":  "s1",
		"constraints": "security,made_up",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	var payload map[string]any
	resultJSON(t, result, &payload)
	assert.Equal(t, "validation_failed", payload["code"])
	assert.Contains(t, payload["message"], "made_up")
}

func TestHandleStartSession_NoConstraints(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleStartSession(context.Background(), callToolReq("phasegate_start_session", map[string]any{
		"session_id":  "s1",
		"constraints": "none",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, float64(0), out["constraints"])
}

// ---------------------------------------------------------------------------
// Tests: advance
// ---------------------------------------------------------------------------

func TestHandleAdvancePhase_Success(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleAdvancePhase(context.Background(), callToolReq("phasegate_advance_phase", map[string]any{
		"session_id": "s1",
		"content":    passingContent,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, true, out["success"], "message: %v", out["message"])
	assert.Equal(t, "discovery", out["phase"])
	assert.Equal(t, "design", out["next_phase"])
	require.Contains(t, out, "confirmation")

	conf := out["confirmation"].(map[string]any)
	assert.Equal(t, true, conf["passed"])
	assert.Len(t, conf["checklist"], 5)
}

func TestHandleAdvancePhase_ThinContentFails(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleAdvancePhase(context.Background(), callToolReq("phasegate_advance_phase", map[string]any{
		"session_id": "s1",
		"content":    "too thin",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, false, out["success"])
	assert.NotContains(t, out, "next_phase")
}

func TestHandleAdvancePhase_UnknownSession(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleAdvancePhase(context.Background(), callToolReq("phasegate_advance_phase", map[string]any{
		"session_id": "ghost",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	var payload map[string]any
	resultJSON(t, result, &payload)
	assert.Equal(t, "session_not_found", payload["code"])
	assert.Equal(t, "ghost", payload["session_id"])
}

// ---------------------------------------------------------------------------
// Tests: complete
// ---------------------------------------------------------------------------

func TestHandleCompletePhase(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleCompletePhase(context.Background(), callToolReq("phasegate_complete_phase", map[string]any{
		"session_id": "s1",
		"phase_id":   "discovery",
		"content":    passingContent,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "discovery", out["phase"])
	assert.Greater(t, out["coverage"].(float64), 0.0)
}

func TestHandleCompletePhase_MissingContent(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleCompletePhase(context.Background(), callToolReq("phasegate_complete_phase", map[string]any{
		"session_id": "s1",
		"phase_id":   "discovery",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)

	var payload map[string]any
	resultJSON(t, result, &payload)
	assert.Equal(t, "missing_required_field", payload["code"])
	assert.Equal(t, "content", payload["field"])
}

// ---------------------------------------------------------------------------
// Tests: validate and status
// ---------------------------------------------------------------------------

func TestHandleValidatePhase(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleValidatePhase(context.Background(), callToolReq("phasegate_validate_phase", map[string]any{
		"session_id": "s1",
		"content":    passingContent,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "discovery", out["phase"])
	assert.Equal(t, true, out["passed"])
	assert.Len(t, out["checklist"], 5)
	assert.NotEmpty(t, out["questions"])
}

func TestHandleSessionStatus(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleSessionStatus(context.Background(), callToolReq("phasegate_session_status", map[string]any{
		"session_id": "s1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "discovery", out["current_phase"])
	assert.Equal(t, "active", out["status"])

	phases := out["phases"].(map[string]any)
	assert.Equal(t, "in_progress", phases["discovery"])
	assert.Equal(t, "pending", phases["design"])
	assert.NotEmpty(t, out["history"])
}

// ---------------------------------------------------------------------------
// Tests: reset
// ---------------------------------------------------------------------------

func TestHandleResetSession(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	advance, err := srv.handleAdvancePhase(context.Background(), callToolReq("phasegate_advance_phase", map[string]any{
		"session_id": "s1",
		"content":    passingContent,
	}))
	require.NoError(t, err)
	require.False(t, advance.IsError)

	result, err := srv.handleResetSession(context.Background(), callToolReq("phasegate_reset_session", map[string]any{
		"session_id": "s1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "discovery", out["current_phase"])
}

// ---------------------------------------------------------------------------
// Tests: pivot and consistency
// ---------------------------------------------------------------------------

func TestHandleEvaluatePivot_Force(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "none")

	result, err := srv.handleEvaluatePivot(context.Background(), callToolReq("phasegate_evaluate_pivot", map[string]any{
		"session_id": "s1",
		"content":    "plain note",
		"force":      true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, true, out["triggered"])
	assert.NotEmpty(t, out["alternatives"])
}

func TestHandleEnforceConsistency_NoHistory(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "s1", "all")

	result, err := srv.handleEnforceConsistency(context.Background(), callToolReq("phasegate_enforce_consistency", map[string]any{
		"session_id": "s1",
		"context":    "first pass",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "s1", out["session_id"])
	assert.Equal(t, 100.0, out["consistency_score"], "nothing recorded yet, nothing to conflict with")
}

// ---------------------------------------------------------------------------
// Tests: catalog and sessions
// ---------------------------------------------------------------------------

func TestHandleListCatalog(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleListCatalog(context.Background(), callToolReq("phasegate_list_catalog", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Len(t, out["phases"], 2)
	assert.Len(t, out["constraints"], 1)
	assert.Contains(t, out["categories"], "security")
}

func TestHandleListCatalog_CategoryFilter(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleListCatalog(context.Background(), callToolReq("phasegate_list_catalog", map[string]any{
		"category": "performance",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Empty(t, out["constraints"])
}

func TestHandleListSessions(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv, "a", "none")
	startSession(t, srv, "b", "none")

	result, err := srv.handleListSessions(context.Background(), callToolReq("phasegate_list_sessions", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out []map[string]any
	resultJSON(t, result, &out)
	require.Len(t, out, 2)
	for _, entry := range out {
		assert.Contains(t, []any{"a", "b"}, entry["session_id"])
		assert.Equal(t, "discovery", entry["current_phase"])
	}
}
