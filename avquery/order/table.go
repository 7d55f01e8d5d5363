package order

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// DebugString renders the tree's current order as a markdown table, for
// attaching to an events.Handler trace or printing directly while debugging
// an ordering glitch.
func (t *Tree) DebugString() string {
	ordered := t.OrderedEIDs()
	if len(ordered) == 0 {
		return "_empty order tree_"
	}

	var sb strings.Builder
	table := tablewriter.NewTable(&sb,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"offset", "eid"})
	for i, eid := range ordered {
		table.Append([]string{fmt.Sprintf("%d", i), eid.String()})
	}
	table.Render()
	sb.WriteString(fmt.Sprintf("\n_%d elements_\n", len(ordered)))
	return sb.String()
}
