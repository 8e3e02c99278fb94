package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"civinigrani/internal/datatools"
	"civinigrani/internal/peerlens"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New registers every tool on a fresh MCP server. Only wiring lives here.
func New(tools *datatools.Tools, peers *peerlens.Engine, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"civinigrani",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	top := NewTopDistrictsTool(tools)
	s.AddTool(top.Definition(), top.Handle)

	explain := NewExplainTool(tools)
	s.AddTool(explain.Definition(), explain.Handle)

	spikes := NewSpikesTool(tools)
	s.AddTool(spikes.Definition(), spikes.Handle)

	summary := NewStateSummaryTool(tools)
	s.AddTool(summary.Definition(), summary.Handle)

	compare := NewPeerCompareTool(peers)
	s.AddTool(compare.Definition(), compare.Handle)

	logger.Info("mcp tools registered", zap.Int("tools", 5), zap.String("version", Version))
	return s
}

const instructions = `Read-only access to Public Distribution System delivery-gap data.
PRGI = 1 - distributed/allocated, clipped to [0, 1]; higher is worse.
Every answer carries a citation naming its source and period. Quote it.`
