package core

import "strings"

const (
	FilterAll           = "(All)"
	FilterStatusPending = "(Pending)"
)

func (f PendingFilter) Matches(item PendingApproval) bool {
	if !matchesFilterValue(f.System, item.SourceSystem) {
		return false
	}
	if !matchesFilterValue(f.Module, item.Module) {
		return false
	}
	if !matchesFilterValue(f.Branch, item.Branch) {
		return false
	}
	if strings.TrimSpace(f.Status) == FilterStatusPending {
		return true
	}
	return matchesFilterValue(f.Status, item.Status)
}

// FilterPending returns the items matching filter, preserving order.
func FilterPending(items []PendingApproval, filter PendingFilter) []PendingApproval {
	out := make([]PendingApproval, 0, len(items))
	for _, item := range items {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

func matchesFilterValue(filter string, value string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" || filter == FilterAll {
		return true
	}
	return strings.EqualFold(filter, strings.TrimSpace(value))
}
