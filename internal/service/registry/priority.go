// Package registry implements the per-content search state
// machine, priority scoring, and cooldown policy.
package registry

import (
	"time"

	"comradarr/internal/domain"
)

// Priority scoring constants. Concrete weights are a tuning choice; the
// scoring function itself must stay pure and deterministic.
const (
	priorityBase           = 1000
	ageCapDays             = 60
	ageBonusAtCap          = 200
	airingBonus            = 100
	gapOverUpgradeBonus    = 50
	perAttemptPenalty      = 5
)

// PriorityInputs is everything ComputePriority needs, decoupled from
// storage so scoring stays pure and independently testable.
type PriorityInputs struct {
	FirstDiscovered time.Time
	Now             time.Time
	SearchType      domain.SearchType
	CurrentlyAiring bool
	AttemptCount    int
}

// ComputePriority returns the integer priority score for a registry row.
// Ordering is total: priority DESC, scheduledAt ASC, registry id ASC
// (applied by the caller, e.g. a SQL ORDER BY); this function only
// produces the score itself.
func ComputePriority(in PriorityInputs) int {
	ageDays := in.Now.Sub(in.FirstDiscovered).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > ageCapDays {
		ageDays = ageCapDays
	}
	ageBonus := int((ageDays / ageCapDays) * ageBonusAtCap)

	score := priorityBase + ageBonus

	if in.SearchType == domain.SearchTypeGap {
		score += gapOverUpgradeBonus
	}
	if in.CurrentlyAiring {
		score += airingBonus
	}

	score -= in.AttemptCount * perAttemptPenalty

	return score
}
