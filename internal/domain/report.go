package domain

import "time"

// Outcome is the terminal state of one candidate in a run.
type Outcome string

const (
	OutcomeStoredLLM        Outcome = "stored_llm"
	OutcomeStoredExtractive Outcome = "stored_extractive"
	OutcomeRejected         Outcome = "rejected"
	OutcomeFetchFailed      Outcome = "fetch_failed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeStoreFailed      Outcome = "store_failed"
)

// CategoryReport holds per-category counters.
type CategoryReport struct {
	Token       string   `json:"token"`
	Category    Category `json:"category"`
	Candidates  int      `json:"candidates"`
	Saved       int      `json:"saved"`
	Rejected    int      `json:"rejected"`
	FetchFailed int      `json:"fetch_failed"`
	Duplicates  int      `json:"duplicates"`
	StoreFailed int      `json:"store_failed"`
}

// Record adds one candidate outcome to the category counters.
func (c *CategoryReport) Record(o Outcome) {
	switch o {
	case OutcomeStoredLLM, OutcomeStoredExtractive:
		c.Saved++
	case OutcomeRejected:
		c.Rejected++
	case OutcomeFetchFailed:
		c.FetchFailed++
	case OutcomeDuplicate:
		c.Duplicates++
	case OutcomeStoreFailed:
		c.StoreFailed++
	}
}

// RunReport is the aggregate result of one pipeline run.
type RunReport struct {
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Saved         int              `json:"saved"`
	SavedLLM      int              `json:"saved_llm"`
	SavedFallback int              `json:"saved_fallback"`
	Rejected      int              `json:"rejected"`
	FetchFailed   int              `json:"fetch_failed"`
	Duplicates    int              `json:"duplicates"`
	StoreFailed   int              `json:"store_failed"`
	Deleted       int              `json:"deleted"`
	SweepError    string           `json:"sweep_error,omitempty"`
	Categories    []CategoryReport `json:"categories"`
	Totals        Stats            `json:"totals"`
}

// Record adds one candidate outcome to the run totals.
func (r *RunReport) Record(o Outcome) {
	switch o {
	case OutcomeStoredLLM:
		r.Saved++
		r.SavedLLM++
	case OutcomeStoredExtractive:
		r.Saved++
		r.SavedFallback++
	case OutcomeRejected:
		r.Rejected++
	case OutcomeFetchFailed:
		r.FetchFailed++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeStoreFailed:
		r.StoreFailed++
	}
}
