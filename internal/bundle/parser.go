// Package bundle parses uploaded agent configuration bundles into components.
//
// A bundle is the file tree of an agent workspace: skill markdown files,
// MCP server configuration, memory files, and sub-agent definitions. The
// parser classifies files by path and extracts per-component metadata.
package bundle

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/agent-hr/agenthr/internal/domain"
)

// txt files that are project boilerplate, not agent memory.
var excludedTxtFiles = map[string]bool{
	"license.txt":      true,
	"readme.txt":       true,
	"requirements.txt": true,
	"changelog.txt":    true,
	"changes.txt":      true,
	"authors.txt":      true,
	"contributors.txt": true,
	"notice.txt":       true,
	"copying.txt":      true,
	"manifest.txt":     true,
	"version.txt":      true,
	"todo.txt":         true,
}

// Parsed holds one component extracted from a bundle file.
type Parsed struct {
	Name        string
	Type        domain.ComponentType
	Description string
	Content     string
	Config      json.RawMessage
	SourcePath  string
	MemoryType  domain.MemoryType
}

// Bundle is the result of parsing an uploaded file tree.
type Bundle struct {
	Skills   []Parsed
	MCPTools []Parsed
	Memory   []Parsed
	Agents   []Parsed
}

// Components flattens the bundle into a single component list.
func (b *Bundle) Components() []Parsed {
	out := make([]Parsed, 0, len(b.Skills)+len(b.MCPTools)+len(b.Memory)+len(b.Agents))
	out = append(out, b.Skills...)
	out = append(out, b.MCPTools...)
	out = append(out, b.Memory...)
	out = append(out, b.Agents...)
	return out
}

// firstParagraphAfterTitle returns the first non-blank line following a
// markdown heading.
func firstParagraphAfterTitle(content string) string {
	inDescription := false
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.HasPrefix(line, "#") {
			inDescription = true
			continue
		}
		if inDescription && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// stem returns the filename without its extension.
func stem(filename string) string {
	base := path.Base(filename)
	return strings.TrimSuffix(base, path.Ext(base))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ParseSkill parses a skill markdown file. The skill name comes from the
// filename and the description is the first paragraph after the title.
func ParseSkill(content, filename string) Parsed {
	return Parsed{
		Name:        stem(filename),
		Type:        domain.ComponentTypeSkill,
		Description: firstParagraphAfterTitle(content),
		Content:     content,
	}
}

// ParseAgent parses a sub-agent markdown definition.
func ParseAgent(content, filename string) Parsed {
	return Parsed{
		Name:        stem(filename),
		Type:        domain.ComponentTypeAgent,
		Description: firstParagraphAfterTitle(content),
		Content:     content,
	}
}

// ParseMemory parses a memory file. The description is the first non-header
// line, truncated to 200 characters.
func ParseMemory(content, filename string) Parsed {
	description := ""
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		stripped := strings.TrimSpace(line)
		if stripped != "" && !strings.HasPrefix(stripped, "#") {
			description = truncate(stripped, 200)
			break
		}
	}
	return Parsed{
		Name:        path.Base(filename),
		Type:        domain.ComponentTypeMemory,
		Description: description,
		Content:     content,
		MemoryType:  domain.MemoryTypeLongTerm,
	}
}

// ParseMCPConfig parses an MCP server configuration file and returns one
// component per configured server. Malformed JSON yields no components.
func ParseMCPConfig(content string) []Parsed {
	var data struct {
		MCPServers map[string]json.RawMessage `json:"mcpServers"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil
	}

	var tools []Parsed
	for name, config := range data.MCPServers {
		pretty, err := json.MarshalIndent(json.RawMessage(config), "", "  ")
		if err != nil {
			pretty = config
		}
		tools = append(tools, Parsed{
			Name:        name,
			Type:        domain.ComponentTypeMCPTool,
			Description: "MCP server: " + name,
			Content:     string(pretty),
			Config:      config,
		})
	}
	return tools
}

// memoryTypeFromPath infers the memory type from a memory/<type>/ path
// segment, defaulting to long_term.
func memoryTypeFromPath(filepath string) domain.MemoryType {
	lower := strings.ToLower(filepath)
	for _, mt := range []domain.MemoryType{
		domain.MemoryTypeWorking,
		domain.MemoryTypeShortTerm,
		domain.MemoryTypeLongTerm,
		domain.MemoryTypeProcedural,
	} {
		if strings.Contains(lower, "/"+string(mt)+"/") || strings.HasPrefix(lower, string(mt)+"/") {
			return mt
		}
	}
	return domain.MemoryTypeLongTerm
}

func isMCPConfigFile(name string) bool {
	switch name {
	case "mcp.json", "mcp_config.json", ".mcp.json":
		return true
	}
	return false
}

func isSkillManifest(filepath string) bool {
	lower := strings.ToLower(filepath)
	return strings.EqualFold(path.Base(filepath), "SKILL.md") &&
		(strings.Contains(lower, "/skills/") || strings.HasPrefix(lower, "skills/"))
}

// Parse classifies every file in an uploaded bundle and extracts components.
// Unrecognized files are ignored.
func Parse(files map[string]string) *Bundle {
	b := &Bundle{}

	for filepath, content := range files {
		name := path.Base(filepath)
		ext := strings.ToLower(path.Ext(filepath))

		switch {
		// Skills from .claude/commands/
		case strings.Contains(filepath, ".claude/commands") && ext == ".md":
			skill := ParseSkill(content, name)
			skill.SourcePath = filepath
			b.Skills = append(b.Skills, skill)

		// SKILL.md manifests take their name from the enclosing folder.
		case isSkillManifest(filepath):
			skill := ParseSkill(content, path.Base(path.Dir(filepath))+".md")
			skill.SourcePath = filepath
			b.Skills = append(b.Skills, skill)

		// Sub-agent definitions from .claude/agents/
		case strings.Contains(filepath, ".claude/agents") && ext == ".md":
			agent := ParseAgent(content, name)
			agent.SourcePath = filepath
			b.Agents = append(b.Agents, agent)

		case isMCPConfigFile(name):
			for _, tool := range ParseMCPConfig(content) {
				tool.SourcePath = filepath
				b.MCPTools = append(b.MCPTools, tool)
			}

		case ext == ".md" || ext == ".txt":
			if ext == ".txt" && excludedTxtFiles[strings.ToLower(name)] {
				continue
			}
			memory := ParseMemory(content, name)
			memory.SourcePath = filepath
			memory.MemoryType = memoryTypeFromPath(filepath)
			b.Memory = append(b.Memory, memory)
		}
	}

	return b
}
