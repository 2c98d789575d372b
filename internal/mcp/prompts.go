package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// survey walks a client through processing a directory of field photos.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("survey",
			mcplib.WithPromptDescription("Process a directory of field photos into a map export with evidence records"),
			mcplib.WithArgument("dir",
				mcplib.ArgumentDescription("Directory containing the images"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("output_path",
				mcplib.ArgumentDescription("Where to write the KMZ archive"),
			),
		),
		s.handleSurveyPrompt,
	)

	// verify-evidence explains how to audit the evidence ledger.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("verify-evidence",
			mcplib.WithPromptDescription("Audit the evidence ledger and explain any broken chain"),
		),
		s.handleVerifyPrompt,
	)
}

func (s *Server) handleSurveyPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	dir := request.Params.Arguments["dir"]
	if dir == "" {
		return nil, fmt.Errorf("dir argument is required")
	}
	output := request.Params.Arguments["output_path"]
	if output == "" {
		output = "survey.kmz"
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Survey the images in %s", dir),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Process the field photos in %[1]s:

1. CALL fieldmark_run_workflow with dir=%[1]q and output_path=%[2]q.

2. READ the result:
   - status SUCCESS: report the placemark and cluster counts from the
     geo_exporter result's bundle statistics, and the archive path.
   - status FAILED: the last result of the failing step names the failed
     capabilities and their errors. Report them; do not retry blindly.

3. LIST files the metadata_extractor reported under "errors" (rejected,
   duplicate or unreadable) and "warnings" (no GPS, so not on the map).
   Suggest gps_overrides for images that should be placed manually.`, dir, output),
				},
			},
		},
	}, nil
}

func (s *Server) handleVerifyPrompt(_ context.Context, _ mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "Audit the evidence ledger",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `Read the fieldmark://evidence resource. Every record returned has passed
chain verification; a record that fails verification makes the read fail
and names the record and the first broken link.

Report the Merkle root, the number of records, and for each record its
file name and the actions in its provenance (created, analyzed, exported).
If the read fails, report the error verbatim. Never attempt to repair a
chain: a broken chain is evidence in its own right.`,
				},
			},
		},
	}, nil
}
