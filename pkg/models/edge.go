package models

import (
	"strconv"
	"strings"
)

const (
	HandleTrue         = "true"
	HandleFalse        = "false"
	branchHandlePrefix = "branch-"
)

// Edge connects two nodes. The source handle selects the routing discipline:
// none for linear flow, true/false for conditionals and branch-N for randomizers.
type Edge struct {
	ID           string  `json:"id"            validate:"required"`
	Source       string  `json:"source"        validate:"required"`
	Target       string  `json:"target"        validate:"required"`
	SourceHandle *string `json:"source_handle,omitempty"`
}

// Handle returns the source handle label, or an empty string for linear edges.
func (e *Edge) Handle() string {
	if e.SourceHandle == nil {
		return ""
	}

	return *e.SourceHandle
}

// BranchHandle builds the handle label of the n-th randomizer branch.
func BranchHandle(n int) string {
	return branchHandlePrefix + strconv.Itoa(n)
}

// ParseBranchHandle extracts n from a branch-N handle.
func ParseBranchHandle(handle string) (int, bool) {
	raw, found := strings.CutPrefix(handle, branchHandlePrefix)
	if !found {
		return 0, false
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return n, true
}
