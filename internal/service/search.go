package service

import (
	"strconv"
	"strings"

	"github.com/DaveSongnata/BitTask/internal/types"
)

// parseCitation recognizes "#12" and "12".
func parseCitation(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// matchSearch applies the free-text part of a task filter.
func matchSearch(tasks []*types.Task, search string) []*types.Task {
	search = strings.TrimSpace(search)
	if search == "" {
		return tasks
	}

	if seq, ok := parseCitation(search); ok {
		for _, t := range tasks {
			if t.SequentialID == seq {
				return []*types.Task{t}
			}
		}
		return []*types.Task{}
	}

	needle := strings.ToLower(search)
	out := []*types.Task{}
	for _, t := range tasks {
		if containsFold(t, needle) {
			out = append(out, t)
		}
	}
	return out
}

func containsFold(t *types.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
