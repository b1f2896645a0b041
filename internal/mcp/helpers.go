package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"sitebuilder/internal/document"
	"sitebuilder/internal/prop"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// getIndex reads an insertion index; absent means append.
func getIndex(args map[string]any) int {
	return int(getFloat(args, "index", -1))
}

// parseProps reads a JSON object argument into props. Missing or empty
// arguments yield nil.
func parseProps(args map[string]any, key string) (prop.Props, error) {
	var raw map[string]any
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if err := parseJSON(v, &raw); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
		}
	case map[string]any:
		raw = v
	default:
		return nil, fmt.Errorf("%s must be a JSON object", key)
	}
	return prop.FromMap(raw)
}

// parseDocument reads a serialized document argument given as a JSON string
// or an already decoded object.
func parseDocument(args map[string]any, key string) (document.Serialized, error) {
	switch v := args[key].(type) {
	case string:
		return document.ParseSerialized([]byte(v))
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return document.ParseSerialized(data)
	default:
		return nil, fmt.Errorf("%s is required", key)
	}
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// nodeView is the JSON shape of a node in tool results.
type nodeView struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Parent      string            `json:"parent,omitempty"`
	Props       prop.Props        `json:"props"`
	Hidden      bool              `json:"hidden,omitempty"`
	IsCanvas    bool              `json:"isCanvas"`
	Nodes       []string          `json:"nodes"`
	LinkedNodes map[string]string `json:"linkedNodes,omitempty"`
}

func viewNode(n document.Node) nodeView {
	nodes := n.Nodes
	if nodes == nil {
		nodes = []string{}
	}
	return nodeView{
		ID:          n.ID,
		Type:        n.Type,
		Parent:      n.Parent,
		Props:       n.Props,
		Hidden:      n.Hidden,
		IsCanvas:    n.IsCanvas,
		Nodes:       nodes,
		LinkedNodes: n.LinkedNodes,
	}
}
