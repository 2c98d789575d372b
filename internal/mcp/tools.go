package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/fieldmark/internal/agents"
	"github.com/ashita-ai/fieldmark/internal/capability"
	"github.com/ashita-ai/fieldmark/internal/orchestrator"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("fieldmark_list_capabilities",
			mcplib.WithDescription("List the registered capabilities (agents) with their purpose."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleListCapabilities,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("fieldmark_run_capability",
			mcplib.WithDescription(`Run one capability outside any workflow.

Each capability takes its own params object, for example:
- metadata_extractor: {"dir": "./photos"} or {"paths": ["a.jpg"]}, optional "gps_overrides"
- geo_clusterer: {"placemarks": [...], "radius_meters": 75}
- geo_exporter: {"placemarks": [...], "output_path": "survey.kmz"}`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithString("name",
				mcplib.Description("Registered capability name"),
				mcplib.Required(),
			),
			mcplib.WithObject("params",
				mcplib.Description("Capability parameters"),
			),
		),
		s.handleRunCapability,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("fieldmark_run_workflow",
			mcplib.WithDescription(`Run a workflow and wait for it to finish.

Pass either "workflow" (an object with "steps": [[{"capability", "params"}]])
or "dir" to run the default survey workflow over a directory of images.
Relative paths resolve against the client's first workspace root.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithObject("workflow",
				mcplib.Description("Workflow definition"),
			),
			mcplib.WithString("dir",
				mcplib.Description("Image directory for the default survey workflow"),
			),
			mcplib.WithString("output_path",
				mcplib.Description("KMZ output path for the default survey workflow"),
			),
			mcplib.WithString("title",
				mcplib.Description("Export document title"),
			),
			mcplib.WithString("analyst",
				mcplib.Description("Analyst recorded on evidence entries"),
			),
			mcplib.WithNumber("radius_meters",
				mcplib.Description("Clustering radius in meters"),
				mcplib.Min(0),
			),
		),
		s.handleRunWorkflow,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("fieldmark_state",
			mcplib.WithDescription("Return the engine state: status, current step, active capabilities and step results."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleState,
	)
}

type capabilityInfo struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

func (s *Server) handleListCapabilities(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	reg := s.engine.Registry()
	names := reg.Names()
	out := make([]capabilityInfo, 0, len(names))
	for _, name := range names {
		c, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, capabilityInfo{Name: name, Purpose: c.Purpose()})
	}
	return jsonResult(out)
}

func (s *Server) handleRunCapability(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("name", "")
	if name == "" {
		return errorResult("name is required"), nil
	}
	params := capability.Params{}
	if raw, ok := request.GetArguments()["params"].(map[string]any); ok {
		params = capability.Params(raw)
	}
	if dir, ok := params["dir"].(string); ok {
		params["dir"] = s.resolvePath(ctx, dir)
	}
	if out, ok := params["output_path"].(string); ok {
		params["output_path"] = s.resolvePath(ctx, out)
	}

	res := s.engine.RunSingleAgent(ctx, name, params)
	s.logger.Info("capability run", "capability", name, "success", res.Success)
	result, err := jsonResult(res)
	if result != nil {
		result.IsError = !res.Success
	}
	return result, err
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	wf, err := s.workflowFromRequest(ctx, request)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	st, err := s.engine.StartWorkflow(ctx, wf)
	if errors.Is(err, orchestrator.ErrWorkflowRunning) {
		return errorResult("a workflow is already running; poll fieldmark_state and retry"), nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("workflow rejected: %v", err)), nil
	}
	s.logger.Info("workflow run", "run_id", st.RunID, "status", st.Status)

	result, err := jsonResult(st)
	if result != nil {
		result.IsError = st.Status != orchestrator.StatusSuccess
	}
	return result, err
}

func (s *Server) workflowFromRequest(ctx context.Context, request mcplib.CallToolRequest) (orchestrator.Workflow, error) {
	if raw, ok := request.GetArguments()["workflow"]; ok && raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return orchestrator.Workflow{}, fmt.Errorf("invalid workflow: %w", err)
		}
		var wf orchestrator.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return orchestrator.Workflow{}, fmt.Errorf("invalid workflow: %w", err)
		}
		return wf, nil
	}

	dir := request.GetString("dir", "")
	if dir == "" {
		return orchestrator.Workflow{}, errors.New("workflow or dir is required")
	}
	opts := agents.WorkflowOptions{
		Dir:          s.resolvePath(ctx, dir),
		Title:        request.GetString("title", ""),
		Analyst:      request.GetString("analyst", ""),
		RadiusMeters: request.GetFloat("radius_meters", 0),
	}
	if out := request.GetString("output_path", ""); out != "" {
		opts.OutputPath = s.resolvePath(ctx, out)
	}
	return agents.DefaultWorkflow(opts), nil
}

func (s *Server) handleState(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(s.engine.State())
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
