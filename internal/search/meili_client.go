package search

import "fmt"

// FilterLevelParent creates filter string for level and parent_id
func FilterLevelParent(level int, parentID string) string {
	if parentID == "" {
		return FilterLevel(level)
	}
	return fmt.Sprintf("level = %d AND parent_id = %q", level, parentID)
}

// FilterLevel creates simple level filter
func FilterLevel(level int) string {
	return fmt.Sprintf("level = %d", level)
}
