package engine

import "github.com/google/uuid"

// newUUID generates the unique suffix rebuild_data_file uses for its
// throwaway sibling table, avoiding the timestamp-collision risk of naming
// it directly after the wall clock.
func newUUID() string {
	return uuid.NewString()
}
