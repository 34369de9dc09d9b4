package runner

import (
	"slices"

	"github.com/garagon/sifter/internal/types"
)

type issueKey struct {
	file, category, message string
	line                    int
}

// mergeIssues removes duplicate issues by (file, line, category, message),
// keeping the highest severity instance, and sorts the result.
func mergeIssues(issues []types.Issue) []types.Issue {
	best := make(map[issueKey]int, len(issues))
	result := make([]types.Issue, 0, len(issues))
	for _, is := range issues {
		k := issueKey{file: is.File, category: is.Category, message: is.Message, line: is.Line}
		if idx, ok := best[k]; ok {
			if is.Severity > result[idx].Severity {
				result[idx] = is
			}
			continue
		}
		best[k] = len(result)
		result = append(result, is)
	}
	slices.SortFunc(result, compareIssues)
	return result
}

func compareIssues(a, b types.Issue) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
