package syncer

import "github.com/castarr/castarr/internal/sonarr"

// Decision is the outcome of evaluating a matched episode against the
// downstream consumer's state. The set is closed; every matched episode
// maps to exactly one of these.
type Decision int

const (
	// DecisionUnknown means the downstream state query failed; the match
	// is cached conservatively instead of guessing into a duplicate
	// download.
	DecisionUnknown Decision = iota
	// DecisionNoIntegration means no consumer is configured or the series
	// is not linked; matches are cached only.
	DecisionNoIntegration
	// DecisionNotMonitored means the consumer has no record of the episode
	// or explicitly does not want it.
	DecisionNotMonitored
	// DecisionFileExists means the consumer already has a file.
	DecisionFileExists
	// DecisionDownload means the episode is monitored and missing.
	DecisionDownload
)

func (d Decision) String() string {
	switch d {
	case DecisionNoIntegration:
		return "noIntegration"
	case DecisionNotMonitored:
		return "notMonitored"
	case DecisionFileExists:
		return "fileExists"
	case DecisionDownload:
		return "download"
	default:
		return "unknown"
	}
}

// Evaluate maps downstream episode state to a decision. integrated is false
// when no consumer is configured or the series has no downstream linkage;
// known is false when the consumer is integrated but its state query failed
// this cycle. An episode the consumer has no record of counts as not
// monitored.
func Evaluate(integrated, known bool, state sonarr.EpisodeState) Decision {
	switch {
	case !integrated:
		return DecisionNoIntegration
	case !known:
		return DecisionUnknown
	case !state.Exists, !state.Monitored:
		return DecisionNotMonitored
	case state.HasFile:
		return DecisionFileExists
	default:
		return DecisionDownload
	}
}
