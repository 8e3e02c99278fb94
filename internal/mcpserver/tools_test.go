package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"civinigrani/internal/datatools"
	"civinigrani/internal/domain"
	"civinigrani/internal/peerlens"
)

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

var oct = time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

func fixture() []domain.PRGIRecord {
	return []domain.PRGIRecord{
		{District: "agra", Month: oct, Allocation: 1000, Distribution: 600, PRGI: 0.4},
		{District: "banda", Month: oct, Allocation: 1000, Distribution: 800, PRGI: 0.2},
		{District: "chitrakoot", Month: oct, Allocation: 1050, Distribution: 840, PRGI: 0.2},
		{District: "deoria", Month: oct, Allocation: 980, Distribution: 784, PRGI: 0.2},
	}
}

func TestTopDistrictsTool(t *testing.T) {
	tool := NewTopDistrictsTool(datatools.New(fixture(), nil))
	if def := tool.Definition(); def.Name != "prgi_top_districts" {
		t.Errorf("Name: got %q", def.Name)
	}

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"n": float64(1)}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(res))
	}

	var body struct {
		Results  []datatools.DistrictPRGI `json:"results"`
		Citation datatools.Citation       `json:"citation"`
	}
	if err := json.Unmarshal([]byte(resultText(res)), &body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Results) != 1 || body.Results[0].District != "Agra" {
		t.Errorf("Results: got %+v", body.Results)
	}
	if body.Citation.Source != "PDS Distribution Data" {
		t.Errorf("Citation: got %+v", body.Citation)
	}
}

func TestTopDistrictsTool_NoData(t *testing.T) {
	res, _ := NewTopDistrictsTool(datatools.New(nil, nil)).Handle(context.Background(), makeReq(nil))
	if !res.IsError || resultText(res) != "No PRGI data available" {
		t.Errorf("Expected tool error, got %q", resultText(res))
	}
}

func TestExplainTool_RequiresDistrict(t *testing.T) {
	res, _ := NewExplainTool(datatools.New(fixture(), nil)).Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !res.IsError || !strings.Contains(resultText(res), "district is required") {
		t.Errorf("Got %q", resultText(res))
	}
}

func TestPeerCompareTool(t *testing.T) {
	engine := peerlens.New(fixture(), nil, nil, peerlens.DefaultOptions())
	tool := NewPeerCompareTool(engine)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"district": "Agra"}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(res)
	if res.IsError {
		t.Fatalf("Unexpected tool error: %s", text)
	}

	var view peerView
	if err := json.Unmarshal([]byte(text), &view); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !view.ComparisonValid || view.PeerCount != 3 {
		t.Errorf("Expected valid comparison with 3 peers: %+v", view)
	}
	if view.PRGIRelative == nil || *view.PRGIRelative != 2 {
		t.Errorf("PRGI relative: got %v", view.PRGIRelative)
	}
	if view.GrievanceRelative != nil {
		t.Errorf("Grievance ratio without population should be null, got %v", *view.GrievanceRelative)
	}
	if view.Interpretation[domain.MetricDeliveryGap] != domain.VerdictWorse {
		t.Errorf("Interpretation: got %v", view.Interpretation)
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"district": "Gotham"}))
	if !res.IsError || resultText(res) != "District 'Gotham' not found" {
		t.Errorf("Unknown district: got %q", resultText(res))
	}
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(datatools.New(fixture(), nil), peerlens.New(fixture(), nil, nil, peerlens.DefaultOptions()), nil)
	if s == nil {
		t.Fatal("Expected server")
	}
}
