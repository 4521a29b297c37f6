package voicesearch

import "errors"

// Steps name the orchestration stage that failed.
const (
	StepSearch  = "Search"
	StepSpeech  = "Speech generation"
	StepPersist = "Persist search"
	StepHistory = "History"
)

var (
	ErrScraperUnavailable     = errors.New("scraper not initialized")
	ErrSynthesizerUnavailable = errors.New("speech synthesizer not initialized")
	ErrHistoryUnavailable     = errors.New("history store not initialized")
)

// StepError is a service-level failure of one orchestration step. Per-URL
// scrape failures never surface as a StepError.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + " failed: " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}
