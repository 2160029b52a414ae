package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "searchapi://"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         uriScheme + "indexes",
		Name:        "indexes",
		Description: "All configured search indexes",
		MIMEType:    "application/json",
	}, s.handleIndexesResource)

	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "indexes/{indexId}/fields",
		Name:        "index-fields",
		Description: "Fields offered by an index, with their types and boosts",
		MIMEType:    "application/json",
	}, s.handleFieldsResource)
}

func (s *Server) handleIndexesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return jsonResult(req.Params.URI, []struct{}{})
	}

	configs, err := s.ports.Index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}

	type indexInfo struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		Server      string   `json:"server"`
		Datasources []string `json:"datasources"`
		Enabled     bool     `json:"enabled"`
		ReadOnly    bool     `json:"read_only"`
	}

	infos := make([]indexInfo, len(configs))
	for i, cfg := range configs {
		infos[i] = indexInfo{
			ID:          cfg.ID,
			Name:        cfg.Name,
			Description: cfg.Description,
			Server:      cfg.ServerID,
			Datasources: cfg.DatasourceIDs,
			Enabled:     cfg.Enabled,
			ReadOnly:    cfg.ReadOnly,
		}
	}
	return jsonResult(req.Params.URI, infos)
}

func (s *Server) handleFieldsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	indexID := extractIndexID(req.Params.URI)
	if indexID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	fields, err := s.ports.Index.Fields(ctx, indexID, false)
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}

	type fieldInfo struct {
		ID      string  `json:"id"`
		Label   string  `json:"label"`
		Type    string  `json:"type"`
		Boost   float64 `json:"boost,omitempty"`
		Indexed bool    `json:"indexed"`
	}

	infos := make([]fieldInfo, 0, len(fields))
	for id, f := range fields {
		infos = append(infos, fieldInfo{
			ID:      id,
			Label:   f.Label,
			Type:    f.Type,
			Boost:   f.Boost,
			Indexed: f.Indexed,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return jsonResult(req.Params.URI, infos)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractIndexID extracts the index ID from a URI like searchapi://indexes/{indexId}/fields.
func extractIndexID(uri string) string {
	const prefix = uriScheme + "indexes/"
	const suffix = "/fields"

	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
