// Package gen provides utility functions for generating values.
package gen

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

const sep = "|"

// Key generates a key based on the provided strings a and b.
func Key(a, b string) string {
	return fmt.Sprintf("%s%s%s", a, sep, b)
}

// UUIDv5 generates a UUIDv5 based on the provided strings a and b.
func UUIDv5(a, b string) string {
	key := Key(a, b)

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// RunID generates a random identifier for one batch run.
func RunID() string {
	return uuid.NewString()
}

// TaskID derives the identifier of the task created for input line number index of a run.
// Repeated lines get distinct identifiers.
func TaskID(runID string, index int, line string) string {
	return UUIDv5(runID, Key(strconv.Itoa(index), line))
}
