package dataset

import (
	"fmt"
	"strings"
)

// Render produces the line-oriented schema block used both for display and as
// the model prompt's schema context. Output is byte-stable for identical input.
func Render(meta Meta) string {
	lines := make([]string, 0, len(meta.Columns)+1)
	lines = append(lines, "Table: "+meta.TableName)
	for _, column := range meta.Columns {
		lines = append(lines, fmt.Sprintf("- %s (%s)", column.Name, column.Type))
	}
	return strings.Join(lines, "\n")
}
