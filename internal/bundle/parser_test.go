package bundle

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/agent-hr/agenthr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkill(t *testing.T) {
	content := "# Triage\n\nRoutes tickets by severity.\n\nMore detail here."
	skill := ParseSkill(content, "triage.md")

	assert.Equal(t, "triage", skill.Name)
	assert.Equal(t, domain.ComponentTypeSkill, skill.Type)
	assert.Equal(t, "Routes tickets by severity.", skill.Description)
	assert.Equal(t, content, skill.Content)
}

func TestParseSkillNoTitle(t *testing.T) {
	skill := ParseSkill("just some text without a heading", "raw.md")
	assert.Equal(t, "raw", skill.Name)
	assert.Equal(t, "", skill.Description)
}

func TestParseMemory(t *testing.T) {
	content := "# Escalations\n\nEscalate P1 incidents to the on-call engineer immediately."
	memory := ParseMemory(content, "escalations.md")

	assert.Equal(t, "escalations.md", memory.Name)
	assert.Equal(t, domain.ComponentTypeMemory, memory.Type)
	assert.Equal(t, "Escalate P1 incidents to the on-call engineer immediately.", memory.Description)
	assert.Equal(t, domain.MemoryTypeLongTerm, memory.MemoryType)
}

func TestParseMemoryTruncatesDescription(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	memory := ParseMemory(string(long), "notes.txt")
	assert.Len(t, memory.Description, 200)
}

func TestParseMCPConfig(t *testing.T) {
	content := `{"mcpServers": {"jira": {"command": "jira-mcp", "args": ["--workspace", "eng"]}, "slack": {"command": "slack-mcp"}}}`
	tools := ParseMCPConfig(content)

	require.Len(t, tools, 2)
	byName := map[string]Parsed{}
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	jira, ok := byName["jira"]
	require.True(t, ok)
	assert.Equal(t, domain.ComponentTypeMCPTool, jira.Type)
	assert.Equal(t, "MCP server: jira", jira.Description)
	assert.JSONEq(t, `{"command": "jira-mcp", "args": ["--workspace", "eng"]}`, string(jira.Config))
}

func TestParseMCPConfigMalformedJSON(t *testing.T) {
	assert.Nil(t, ParseMCPConfig("{not json"))
}

func TestParseClassifiesFiles(t *testing.T) {
	files := map[string]string{
		".claude/commands/triage.md":        "# Triage\n\nRoutes tickets.",
		"skills/brand-guidelines/SKILL.md":  "# Brand\n\nBrand voice rules.",
		".claude/agents/researcher.md":      "# Researcher\n\nDigs through docs.",
		".mcp.json":                         `{"mcpServers": {"jira": {"command": "jira-mcp"}}}`,
		"CLAUDE.md":                         "Project context for the agent.",
		"memory/procedural/deploy-steps.md": "How to deploy: run the pipeline.",
		"LICENSE.txt":                       "MIT License",
		"main.py":                           "print('hello')",
	}

	b := Parse(files)

	require.Len(t, b.Skills, 2)
	skillNames := []string{b.Skills[0].Name, b.Skills[1].Name}
	assert.ElementsMatch(t, []string{"triage", "brand-guidelines"}, skillNames)

	require.Len(t, b.Agents, 1)
	assert.Equal(t, "researcher", b.Agents[0].Name)

	require.Len(t, b.MCPTools, 1)
	assert.Equal(t, "jira", b.MCPTools[0].Name)
	assert.Equal(t, ".mcp.json", b.MCPTools[0].SourcePath)

	require.Len(t, b.Memory, 2)
	byName := map[string]Parsed{}
	for _, m := range b.Memory {
		byName[m.Name] = m
	}
	assert.Equal(t, domain.MemoryTypeLongTerm, byName["CLAUDE.md"].MemoryType)
	assert.Equal(t, domain.MemoryTypeProcedural, byName["deploy-steps.md"].MemoryType)

	assert.Len(t, b.Components(), 6)
}

func TestParseSkipsExcludedTxtFiles(t *testing.T) {
	files := map[string]string{
		"README.txt": "how to use",
		"notes.txt":  "remember the escalation path",
	}
	b := Parse(files)
	require.Len(t, b.Memory, 1)
	assert.Equal(t, "notes.txt", b.Memory[0].Name)
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"CLAUDE.md":                  "context",
		".claude/commands/triage.md": "# Triage\n\nRoutes.",
	})

	files, err := ExtractZip(data)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, "context", files["CLAUDE.md"])
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"../../etc/passwd": "pwned",
	})

	_, err := ExtractZip(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid path")
}

func TestExtractZipSkipsBinaryFiles(t *testing.T) {
	data := zipBytes(t, map[string]string{
		"CLAUDE.md": "context",
		"logo.png":  string([]byte{0x89, 0x50, 0x4e, 0x47, 0xff, 0xfe}),
	})

	files, err := ExtractZip(data)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestExtractZipInvalidArchive(t *testing.T) {
	_, err := ExtractZip([]byte("not a zip"))
	require.Error(t, err)
}

func TestExtractZipRejectsOversizedEntry(t *testing.T) {
	// Compresses to almost nothing but inflates past the upload cap.
	data := zipBytes(t, map[string]string{
		"memory/huge.md": strings.Repeat("a", MaxUploadSize+1),
	})

	_, err := ExtractZip(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size limit")
}

func TestBuildZipRoundTrip(t *testing.T) {
	files := map[string]string{
		".claude/commands/triage.md": "# Triage\n\nRoutes.",
		"mcp.json":                   `{"mcpServers":{}}`,
	}

	data, err := BuildZip(files)
	require.NoError(t, err)

	out, err := ExtractZip(data)
	require.NoError(t, err)
	assert.Equal(t, files, out)
}

func TestIsSafePath(t *testing.T) {
	assert.True(t, isSafePath("skills/triage.md"))
	assert.False(t, isSafePath(""))
	assert.False(t, isSafePath("/etc/passwd"))
	assert.False(t, isSafePath(`\windows\system32`))
	assert.False(t, isSafePath("C:evil"))
	assert.False(t, isSafePath("a/../../b"))
	assert.False(t, isSafePath(`a\..\..\b`))
}
