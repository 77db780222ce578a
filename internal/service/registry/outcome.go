package registry

import (
	"time"

	"comradarr/internal/domain"
)

// OutcomeParams is the pure input to DecideOutcome: everything needed to
// compute the next registry state without touching storage.
type OutcomeParams struct {
	Row                  domain.SearchRegistry
	Now                  time.Time
	Success              bool
	Category             domain.FailureCategory // meaningful when !Success
	IsSeasonPackSearch   bool
	ConnectorPausedUntil *time.Time
	CooldownTiers        []time.Duration
	MaxAttempts          int
	ErrorCooldown        time.Duration
}

// DecideOutcome computes the RegistryOutcomeUpdate for one dispatch
// outcome. It is pure and deterministic given its inputs.
func DecideOutcome(p OutcomeParams) domain.RegistryOutcomeUpdate {
	switch {
	case p.Success:
		return decideSuccess(p)
	case p.Category == domain.FailureRateLimit:
		return decideRateLimited(p)
	case p.Category == domain.FailureAuthentication, p.Category == domain.FailureSSL:
		return decideHardFailure(p)
	case p.Category == domain.FailureNoResults:
		return decideNoResults(p)
	default:
		return decideTransientFailure(p)
	}
}

func decideSuccess(p OutcomeParams) domain.RegistryOutcomeUpdate {
	nextEligible := p.Now.Add(CooldownFor(0, p.CooldownTiers))
	return domain.RegistryOutcomeUpdate{
		State:           domain.RegistryCooldown,
		AttemptCount:    p.Row.AttemptCount,
		NextEligible:    &nextEligible,
		FailureCategory: domain.FailureNone,
		BacklogTier:     0,
	}
}

func decideRateLimited(p OutcomeParams) domain.RegistryOutcomeUpdate {
	// "do not advance attemptCount": the pick-time increment already
	// happened; we leave it as-is rather than decrementing or adding more.
	return domain.RegistryOutcomeUpdate{
		State:           domain.RegistryPending,
		AttemptCount:    p.Row.AttemptCount,
		NextEligible:    p.ConnectorPausedUntil,
		FailureCategory: domain.FailureRateLimit,
		BacklogTier:     p.Row.BacklogTier,
	}
}

func decideHardFailure(p OutcomeParams) domain.RegistryOutcomeUpdate {
	// authentication/ssl bypass retry and exhaust regardless of
	// attemptCount; an exhausted row also carries the max backlog tier.
	return domain.RegistryOutcomeUpdate{
		State:           domain.RegistryExhausted,
		AttemptCount:    p.Row.AttemptCount,
		NextEligible:    nil,
		FailureCategory: p.Category,
		BacklogTier:     domain.MaxBacklogTier,
	}
}

func decideNoResults(p OutcomeParams) domain.RegistryOutcomeUpdate {
	wasAtMaxTier := p.Row.BacklogTier >= domain.MaxBacklogTier
	newTier := AdvanceTier(p.Row.BacklogTier)

	var seasonPackFailed *bool
	if p.IsSeasonPackSearch {
		v := true
		seasonPackFailed = &v
	}

	if wasAtMaxTier && p.Row.AttemptCount >= p.MaxAttempts {
		return domain.RegistryOutcomeUpdate{
			State:            domain.RegistryExhausted,
			AttemptCount:     p.Row.AttemptCount,
			NextEligible:     nil,
			FailureCategory:  domain.FailureNoResults,
			BacklogTier:      domain.MaxBacklogTier,
			SeasonPackFailed: seasonPackFailed,
		}
	}

	nextEligible := p.Now.Add(CooldownFor(newTier, p.CooldownTiers))
	return domain.RegistryOutcomeUpdate{
		State:            domain.RegistryCooldown,
		AttemptCount:     p.Row.AttemptCount,
		NextEligible:     &nextEligible,
		FailureCategory:  domain.FailureNoResults,
		BacklogTier:      newTier,
		SeasonPackFailed: seasonPackFailed,
	}
}

func decideTransientFailure(p OutcomeParams) domain.RegistryOutcomeUpdate {
	cooldown := p.ErrorCooldown
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	nextEligible := p.Now.Add(cooldown)
	return domain.RegistryOutcomeUpdate{
		State:           domain.RegistryCooldown,
		AttemptCount:    p.Row.AttemptCount,
		NextEligible:    &nextEligible,
		FailureCategory: p.Category,
		BacklogTier:     p.Row.BacklogTier,
	}
}
