package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"civinigrani/internal/datatools"
	"civinigrani/internal/domain"
	"civinigrani/internal/peerlens"
)

// TopDistrictsTool handles prgi_top_districts.
type TopDistrictsTool struct {
	tools *datatools.Tools
}

// NewTopDistrictsTool creates a TopDistrictsTool.
func NewTopDistrictsTool(tools *datatools.Tools) *TopDistrictsTool {
	return &TopDistrictsTool{tools: tools}
}

// Definition returns the MCP tool definition for prgi_top_districts.
func (t *TopDistrictsTool) Definition() mcp.Tool {
	return mcp.NewTool("prgi_top_districts",
		mcp.WithDescription("Districts with the highest PRGI (widest gap between allocated and distributed grain), latest month per district."),
		mcp.WithNumber("n",
			mcp.Description("Number of districts (default: 5)"),
		),
		mcp.WithString("period",
			mcp.Description("Optional month filter such as 2024-10"),
		),
	)
}

// Handle processes the prgi_top_districts call.
func (t *TopDistrictsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := t.tools.TopPRGIDistricts(intArg(req, "n", datatools.DefaultTopN), strings.TrimSpace(req.GetString("period", "")))
	if resp.Error != "" {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return jsonResult(resp)
}

// ExplainTool handles prgi_explain.
type ExplainTool struct {
	tools *datatools.Tools
}

// NewExplainTool creates an ExplainTool.
func NewExplainTool(tools *datatools.Tools) *ExplainTool {
	return &ExplainTool{tools: tools}
}

// Definition returns the MCP tool definition for prgi_explain.
func (t *ExplainTool) Definition() mcp.Tool {
	return mcp.NewTool("prgi_explain",
		mcp.WithDescription("Explain how a district's PRGI moved against the previous month."),
		mcp.WithString("district",
			mcp.Required(),
			mcp.Description("District name, any case"),
		),
		mcp.WithString("month",
			mcp.Description("Optional month such as 2024-10 (default: latest)"),
		),
	)
}

// Handle processes the prgi_explain call.
func (t *ExplainTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	district := strings.TrimSpace(req.GetString("district", ""))
	if district == "" {
		return mcp.NewToolResultError("district is required"), nil
	}
	resp := t.tools.ExplainPRGIChange(district, strings.TrimSpace(req.GetString("month", "")))
	if resp.Error != "" {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return jsonResult(resp)
}

// SpikesTool handles pgsm_spikes.
type SpikesTool struct {
	tools *datatools.Tools
}

// NewSpikesTool creates a SpikesTool.
func NewSpikesTool(tools *datatools.Tools) *SpikesTool {
	return &SpikesTool{tools: tools}
}

// Definition returns the MCP tool definition for pgsm_spikes.
func (t *SpikesTool) Definition() mcp.Tool {
	return mcp.NewTool("pgsm_spikes",
		mcp.WithDescription("Months where total grievance receipts rose faster than a percentage threshold."),
		mcp.WithNumber("threshold_pct",
			mcp.Description("Month-over-month increase to flag, in percent (default: 30)"),
		),
	)
}

// Handle processes the pgsm_spikes call.
func (t *SpikesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := t.tools.GrievanceSpikes(floatArg(req, "threshold_pct", datatools.DefaultSpikeThresholdPct))
	if resp.Error != "" {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return jsonResult(resp)
}

// StateSummaryTool handles state_summary.
type StateSummaryTool struct {
	tools *datatools.Tools
}

// NewStateSummaryTool creates a StateSummaryTool.
func NewStateSummaryTool(tools *datatools.Tools) *StateSummaryTool {
	return &StateSummaryTool{tools: tools}
}

// Definition returns the MCP tool definition for state_summary.
func (t *StateSummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("state_summary",
		mcp.WithDescription("State-level PRGI statistics with a high/medium/low risk breakdown."),
		mcp.WithString("year",
			mcp.Description("Optional year filter such as 2024"),
		),
	)
}

// Handle processes the state_summary call.
func (t *StateSummaryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := t.tools.StateSummary(strings.TrimSpace(req.GetString("year", "")))
	if resp.Error != "" {
		return mcp.NewToolResultError(resp.Error), nil
	}
	return jsonResult(resp)
}

// PeerCompareTool handles peerlens_compare.
type PeerCompareTool struct {
	engine *peerlens.Engine
}

// NewPeerCompareTool creates a PeerCompareTool.
func NewPeerCompareTool(engine *peerlens.Engine) *PeerCompareTool {
	return &PeerCompareTool{engine: engine}
}

// Definition returns the MCP tool definition for peerlens_compare.
func (t *PeerCompareTool) Definition() mcp.Tool {
	return mcp.NewTool("peerlens_compare",
		mcp.WithDescription(
			"Compare a district with peers of similar population and allocation. "+
				"Ratios are target / peer median; peers are listed for audit."),
		mcp.WithString("district",
			mcp.Required(),
			mcp.Description("District name, any case"),
		),
	)
}

// peerView is the JSON shape of a comparison; undefined ratios are null.
type peerView struct {
	District           string            `json:"district"`
	PeerCount          int               `json:"peer_count"`
	ComparisonValid    bool              `json:"comparison_valid"`
	Note               string            `json:"note,omitempty"`
	PRGIRelative       *float64          `json:"prgi_relative,omitempty"`
	GrievanceRelative  *float64          `json:"grievance_relative,omitempty"`
	ResolutionRelative *float64          `json:"resolution_relative,omitempty"`
	PeerDistricts      []string          `json:"peer_districts,omitempty"`
	Interpretation     map[string]string `json:"interpretation,omitempty"`
}

func ratioPtr(r domain.Ratio) *float64 {
	if !r.Defined {
		return nil
	}
	v := r.Value
	return &v
}

func newPeerView(c domain.PeerComparison) peerView {
	return peerView{
		District:           c.District,
		PeerCount:          c.PeerCount,
		ComparisonValid:    c.Valid,
		Note:               c.Note,
		PRGIRelative:       ratioPtr(c.PRGIRelative),
		GrievanceRelative:  ratioPtr(c.GrievanceRelative),
		ResolutionRelative: ratioPtr(c.ResolutionRelative),
		PeerDistricts:      c.Peers,
		Interpretation:     c.Interpretation,
	}
}

// Handle processes the peerlens_compare call.
func (t *PeerCompareTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	district := strings.TrimSpace(req.GetString("district", ""))
	if district == "" {
		return mcp.NewToolResultError("district is required"), nil
	}
	c, err := t.engine.Analyze(district)
	if err != nil {
		return mcp.NewToolResultError(peerlens.UserMessage(district, err)), nil
	}
	return jsonResult(newPeerView(c))
}
