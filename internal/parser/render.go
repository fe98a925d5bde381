package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// RenderTree draws an entity graph as an indented tree
func RenderTree(e *types.SourceEntity) string {
	if e == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", e.Name, e.Kind)
	if e.Path != "" {
		fmt.Fprintf(&b, " [%s]", e.Path)
	}
	b.WriteString("\n")

	sections := []struct {
		title string
		lines []string
	}{
		{"Parents", e.Parents},
		{fmt.Sprintf("Members (%d)", e.MemberCount), memberLines(e.Members)},
		{"Includes", e.Dependencies},
	}

	for i, s := range sections {
		last := i == len(sections)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		b.WriteString(branch + s.title + "\n")
		if len(s.lines) == 0 {
			b.WriteString(indent + "└── (none)\n")
			continue
		}
		for j, line := range s.lines {
			if j == len(s.lines)-1 {
				b.WriteString(indent + "└── " + line + "\n")
			} else {
				b.WriteString(indent + "├── " + line + "\n")
			}
		}
	}

	return b.String()
}

func memberLines(members []types.Member) []string {
	lines := make([]string, 0, len(members))
	for _, m := range members {
		var tags []string
		if m.Macro != "" {
			tags = append(tags, m.Macro)
		}
		if m.IsComponent {
			tags = append(tags, "component")
		}
		if m.IsPointer {
			tags = append(tags, "pointer")
		}
		line := m.Type + " " + m.Name
		if len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		lines = append(lines, line)
	}
	return lines
}

// RenderJSON encodes an entity graph as indented JSON. Nil lists are encoded
// as empty arrays so the output shape does not depend on how the entity was built.
func RenderJSON(e *types.SourceEntity) ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	c := e.Clone()
	return json.MarshalIndent(c, "", "  ")
}
