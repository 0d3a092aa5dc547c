package reportview

import (
	"sort"
	"strings"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var (
	knownStatuses = []Status{StatusNew, StatusPending, StatusInProgress, StatusResolved, StatusClosed}

	statusSynonyms = map[string]Status{
		"progress":    StatusInProgress,
		"in_progress": StatusInProgress,
	}

	// Only the admin save action folds rejected into closed; reads keep the raw value.
	adminWriteSynonyms = map[string]Status{
		"rejected": StatusClosed,
	}
)

// NormalizeStatus resolves known spellings case-insensitively. Anything unrecognised is
// returned as-is so unexpected backend values stay visible.
func NormalizeStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	key := strings.ToLower(trimmed)
	for _, status := range knownStatuses {
		if key == string(status) {
			return status
		}
	}
	if status, ok := statusSynonyms[key]; ok {
		return status
	}
	return Status(trimmed)
}

// AdminWriteStatus is NormalizeStatus plus the synonyms only the admin write path accepts.
func AdminWriteStatus(raw string) Status {
	if status, ok := adminWriteSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return NormalizeStatus(raw)
}

func (s Status) Known() bool {
	for _, status := range knownStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// StatusAliases lists every raw spelling that normalizes to status, canonical first.
// Sources use it to push a status predicate down to their query language.
func StatusAliases(status Status) []string {
	aliases := []string{string(status)}
	for raw, canonical := range statusSynonyms {
		if canonical == status {
			aliases = append(aliases, raw)
		}
	}
	if len(aliases) > 2 {
		sort.Strings(aliases[1:])
	}
	return aliases
}
