package pq

import (
	"fmt"
	"strings"
)

// SeriesDiffMessage formats the commit message of a refreshed patch series.
// A single added patch gives a one line message, anything else a summary
// listing every addition and removal.
func SeriesDiffMessage(added, removed []string) string {
	if len(added) == 1 && len(removed) == 0 {
		return "Add " + added[0]
	}
	var b strings.Builder
	b.WriteString("Rediff patches\n\n")
	for _, name := range added {
		fmt.Fprintf(&b, "Add %s: <REASON>\n", name)
	}
	for _, name := range removed {
		fmt.Fprintf(&b, "Drop %s: <REASON>\n", name)
	}
	return b.String()
}
