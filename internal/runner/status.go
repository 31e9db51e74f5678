package runner

import (
	"signal_bot/internal/models"
)

// snapshot вызывается только из горутины Run.
func (s *Scheduler) snapshot() models.Status {
	sortChains(s.chains)

	chains := make([]models.ChainSummary, 0, len(s.chains))
	for _, ch := range s.chains {
		chains = append(chains, ch.summary())
	}
	history := make([]models.TradeOrder, len(s.history))
	copy(history, s.history)

	return models.Status{
		State:        s.state,
		VerifyRetry:  s.retry,
		Chains:       chains,
		LastOutcomes: history,
		At:           s.now(),
	}
}
