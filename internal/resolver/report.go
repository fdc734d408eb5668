package resolver

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// RenderConflict formats a VersionConflict as the human-readable
// report spec.md §7 requires: "listing each conflict with its parents
// and constraints".
func RenderConflict(c *VersionConflict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "conflict: %s (currently %s)\n", c.Package, c.ChosenVersion)
	for _, rb := range c.RequiredBy {
		fmt.Fprintf(&b, "  required by %s: %s\n", rb.Parent, rb.Constraint)
	}
	return b.String()
}

// DiffConstraints renders a character-level diff between two
// constraint bodies as inline text (diffmatchpatch's DiffPrettyText),
// used when an Interactive resolution needs to show
// the caller exactly what changed between the conflicting requirement
// and a proposed relaxation.
func DiffConstraints(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.DiffPrettyText(diffs)
}
