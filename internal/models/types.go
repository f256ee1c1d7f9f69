
package models

type Classification struct {
	Label  string            `json:"label" yaml:"label"`
	Reason map[string]string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Outcome is what happened to one feed entry during a run.
type Outcome string

const (
	OutcomeEnriched      Outcome = "enriched"
	OutcomeMissingLink   Outcome = "missing_link"
	OutcomeFetchFailed   Outcome = "fetch_failed"
	OutcomeExtractFailed Outcome = "extract_failed"
	OutcomeChallenge     Outcome = "challenge"
	OutcomeUnprocessed   Outcome = "unprocessed"
)

type EntryResult struct {
	Index   int     `json:"index" yaml:"index"`
	Title   string  `json:"title,omitempty" yaml:"title,omitempty"`
	URL     string  `json:"url,omitempty" yaml:"url,omitempty"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
	FetchMs int64   `json:"fetchMs,omitempty" yaml:"fetchMs,omitempty"`
	Bytes   int     `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// RunSummary is returned by a pipeline run. HaltedAt is the 1-based index of
// the entry whose page carried the challenge, 0 when the run was not halted.
type RunSummary struct {
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Total       int           `json:"total" yaml:"total"`
	Enriched    int           `json:"enriched" yaml:"enriched"`
	Skipped     int           `json:"skipped" yaml:"skipped"`
	MissingLink int           `json:"missingLink" yaml:"missingLink"`
	Failed      int           `json:"failed" yaml:"failed"`
	Halted      bool          `json:"halted" yaml:"halted"`
	HaltedAt    int           `json:"haltedAt,omitempty" yaml:"haltedAt,omitempty"`
	Interrupted bool          `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Unprocessed int           `json:"unprocessed" yaml:"unprocessed"`
	ElapsedMs   int64         `json:"elapsedMs" yaml:"elapsedMs"`
	Entries     []EntryResult `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// Record folds one entry result into the counters.
func (s *RunSummary) Record(r EntryResult) {
	s.Entries = append(s.Entries, r)
	switch r.Outcome {
	case OutcomeEnriched:
		s.Enriched++
	case OutcomeMissingLink:
		s.MissingLink++
		s.Skipped++
	case OutcomeFetchFailed, OutcomeExtractFailed:
		s.Failed++
		s.Skipped++
	case OutcomeChallenge, OutcomeUnprocessed:
		s.Unprocessed++
	}
}
