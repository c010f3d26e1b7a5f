package deploy

import (
	"encoding/json"
	"fmt"

	"github.com/agent-hr/agenthr/internal/domain"
)

// agentConfig is the manifest baked into every container image. The runtime
// inside the container reads it to assemble its system prompt and tool set.
type agentConfig struct {
	Skills   []string                   `json:"skills"`
	Tools    map[string]json.RawMessage `json:"tools"`
	Memory   []configMemory             `json:"memory"`
	Subagent []string                   `json:"subagents,omitempty"`
}

type configMemory struct {
	Name string            `json:"name"`
	Type domain.MemoryType `json:"type"`
	Path string            `json:"path"`
}

// BuildWorkspace reconstructs an agent workspace file tree from a version's
// components. Each component lands at its original source path when one was
// recorded, otherwise at a conventional location for its type.
func BuildWorkspace(components []domain.Component) map[string]string {
	files := make(map[string]string)
	cfg := agentConfig{Tools: map[string]json.RawMessage{}}

	for _, c := range components {
		path := c.SourcePath
		switch c.Type {
		case domain.ComponentTypeSkill:
			if path == "" {
				path = fmt.Sprintf(".claude/commands/%s.md", c.Name)
			}
			files[path] = c.Content
			cfg.Skills = append(cfg.Skills, c.Name)

		case domain.ComponentTypeMCPTool:
			if c.Config != nil {
				cfg.Tools[c.Name] = c.Config
			}

		case domain.ComponentTypeMemory:
			if path == "" {
				path = fmt.Sprintf("memory/%s/%s", memoryDir(c.MemoryType), c.Name)
			}
			files[path] = c.Content
			cfg.Memory = append(cfg.Memory, configMemory{Name: c.Name, Type: c.MemoryType, Path: path})

		case domain.ComponentTypeAgent:
			if path == "" {
				path = fmt.Sprintf(".claude/agents/%s.md", c.Name)
			}
			files[path] = c.Content
			cfg.Subagent = append(cfg.Subagent, c.Name)
		}
	}

	if len(cfg.Tools) > 0 {
		servers, _ := json.MarshalIndent(map[string]interface{}{"mcpServers": cfg.Tools}, "", "  ")
		files[".mcp.json"] = string(servers)
	}

	manifest, _ := json.MarshalIndent(cfg, "", "  ")
	files["config.json"] = string(manifest)
	return files
}

func memoryDir(mt domain.MemoryType) string {
	if mt == "" {
		return string(domain.MemoryTypeLongTerm)
	}
	return string(mt)
}
