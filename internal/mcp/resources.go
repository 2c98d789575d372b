package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/fieldmark/internal/evidence"
)

const (
	stateURI          = "fieldmark://state"
	evidenceURI       = "fieldmark://evidence"
	evidenceRecordURI = "fieldmark://evidence/{id}"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			stateURI,
			"Engine State",
			mcplib.WithResourceDescription("Current workflow engine state"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStateResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			evidenceURI,
			"Evidence Ledger",
			mcplib.WithResourceDescription("All verified evidence records with the ledger's Merkle root"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleEvidenceList,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			evidenceRecordURI,
			"Evidence Record",
			mcplib.WithTemplateDescription("One verified evidence record with its provenance chain"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleEvidenceRecord,
	)
}

func (s *Server) handleStateResource(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.engine.State())
}

func (s *Server) handleEvidenceList(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	records, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: list evidence: %w", err)
	}
	return jsonContents(request.Params.URI, map[string]any{
		"root":    evidence.Root(records),
		"records": records,
	})
}

func (s *Server) handleEvidenceRecord(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	raw, ok := strings.CutPrefix(uri, evidenceURI+"/")
	if !ok {
		return nil, fmt.Errorf("mcp: invalid evidence URI: %s", uri)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid evidence id %q: %w", raw, err)
	}
	rec, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mcp: get evidence: %w", err)
	}
	return jsonContents(uri, rec)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
