// ABOUTME: Grid detection for request logging.
// ABOUTME: Extracts the grid name from /api/grids/{grid}/... paths.

package logging

import "strings"

const gridPrefix = "/api/grids/"

// GridFromPath returns the grid a request addresses, or "" for other routes.
func GridFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, gridPrefix)
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}
