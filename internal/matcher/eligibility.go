package matcher

import (
	"sort"

	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
	workerdomain "github.com/craftlink/marketplace-backend/internal/workers/domain"
)

// EligibleWorkers applies the hard filters: available, off probation, skill
// covers the project category, spare capacity, and a set price floor at or
// under the parsed budget ceiling. The result is fairness-sorted: oldest
// last_assignment_at first (never-assigned workers lead), worker id as the
// final tie-break for determinism.
func EligibleWorkers(project *projdomain.Project, workers []workerdomain.WorkerStats) []workerdomain.WorkerStats {
	ceiling := ParseBudgetCeiling(project.Budget)

	eligible := make([]workerdomain.WorkerStats, 0, len(workers))
	for _, w := range workers {
		if !w.IsAvailable || w.IsProbation {
			continue
		}
		if !w.HasSkill(project.ProjectType) {
			continue
		}
		if w.ActiveProjects >= w.MaxProjectsLimit {
			continue
		}
		if w.MinimumPrice <= 0 || w.MinimumPrice > ceiling {
			continue
		}
		eligible = append(eligible, w)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].LastAssignmentAt, eligible[j].LastAssignmentAt
		switch {
		case a == nil && b == nil:
			return eligible[i].WorkerID < eligible[j].WorkerID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return eligible[i].WorkerID < eligible[j].WorkerID
		default:
			return a.Before(*b)
		}
	})

	return eligible
}
