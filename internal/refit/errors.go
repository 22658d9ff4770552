package refit

import (
	"errors"

	"github.com/banshee-data/trackrefit/internal/measure"
)

// Candidate rejections.
var (
	ErrBelowMinPT           = errors.New("candidate pt below minimum")
	ErrFilteredOut          = errors.New("candidate rejected by filter")
	ErrMissingSeed          = errors.New("missing seed")
	ErrNoSiliconClusters    = measure.ErrNoSiliconClusters
	ErrNoMicromegasClusters = measure.ErrNoMicromegasClusters
	ErrMissingGeometry      = measure.ErrMissingGeometry
	ErrNoMeasurements       = measure.ErrNoMeasurements
)

// Fit and transform failures.
var (
	ErrFitFailed     = errors.New("track fit failed")
	ErrExtrapolation = errors.New("extrapolation failed")
)

// Outcome labels a ProcessEvent result for counters and summaries.
type Outcome string

const (
	OutcomeRefit           Outcome = "refit"
	OutcomeBelowMinPT      Outcome = "below_min_pt"
	OutcomeFiltered        Outcome = "filtered"
	OutcomeMissingSeed     Outcome = "missing_seed"
	OutcomeNoSilicon       Outcome = "no_silicon"
	OutcomeNoMicromegas    Outcome = "no_micromegas"
	OutcomeMissingGeometry Outcome = "missing_geometry"
	OutcomeNoMeasurements  Outcome = "no_measurements"
	OutcomeFitFailed       Outcome = "fit_failed"
	OutcomeExtrapolation   Outcome = "extrapolation_failed"
	OutcomeError           Outcome = "error"
)

var outcomeErrors = []struct {
	err     error
	outcome Outcome
}{
	{ErrBelowMinPT, OutcomeBelowMinPT},
	{ErrFilteredOut, OutcomeFiltered},
	{ErrMissingSeed, OutcomeMissingSeed},
	{ErrNoSiliconClusters, OutcomeNoSilicon},
	{ErrNoMicromegasClusters, OutcomeNoMicromegas},
	{ErrMissingGeometry, OutcomeMissingGeometry},
	{ErrNoMeasurements, OutcomeNoMeasurements},
	{ErrFitFailed, OutcomeFitFailed},
	{ErrExtrapolation, OutcomeExtrapolation},
}

// OutcomeOf classifies err. A nil error is a successful refit.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeRefit
	}
	for _, oe := range outcomeErrors {
		if errors.Is(err, oe.err) {
			return oe.outcome
		}
	}
	return OutcomeError
}

// Rejected reports whether o is an input rejection rather than a failure.
func (o Outcome) Rejected() bool {
	switch o {
	case OutcomeBelowMinPT, OutcomeFiltered, OutcomeMissingSeed, OutcomeNoSilicon,
		OutcomeNoMicromegas, OutcomeMissingGeometry, OutcomeNoMeasurements:
		return true
	}
	return false
}
