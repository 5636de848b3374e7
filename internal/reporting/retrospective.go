// Package reporting summarizes recorded checkout outcomes for operators.
// The recorder is in-memory observability, not a store of record: the
// platform persists transaction results itself.
package reporting

import (
	"sync"
	"time"
)

// Record is one finalized checkout attempt.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	AttemptID    string    `json:"attempt_id"`
	Status       string    `json:"status"` // success | failure
	ResponseCode string    `json:"response_code,omitempty"`
	Currency     string    `json:"currency"`
	Amount       int64     `json:"amount"`
	Message      string    `json:"message,omitempty"`
}

// Recorder accumulates records; safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add appends a record, stamping the time when unset.
func (r *Recorder) Add(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Snapshot returns a copy of all records so far.
func (r *Recorder) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// RetrospectiveReport summarizes checkout activity over a set of records.
// Declined counts failures that carry a bank response code; Errored counts
// failures without one (transport, protocol, relay or policy failures).
type RetrospectiveReport struct {
	TotalAttempts    int              `json:"total_attempts"`
	Approved         int              `json:"approved"`
	Declined         int              `json:"declined"`
	Errored          int              `json:"errored"`
	AmountApproved   int64            `json:"amount_approved"`
	AmountByCurrency map[string]int64 `json:"amount_by_currency"`
	CodeBreakdown    map[string]int   `json:"code_breakdown"`
	DateFrom         time.Time        `json:"date_from"`
	DateTo           time.Time        `json:"date_to"`
}

// BuildReport analyzes the records and produces a RetrospectiveReport.
func BuildReport(records []Record) *RetrospectiveReport {
	report := &RetrospectiveReport{
		AmountByCurrency: make(map[string]int64),
		CodeBreakdown:    make(map[string]int),
	}
	if len(records) == 0 {
		return report
	}

	report.DateFrom = records[0].Timestamp
	report.DateTo = records[0].Timestamp

	for _, rec := range records {
		report.TotalAttempts++

		if rec.Timestamp.Before(report.DateFrom) {
			report.DateFrom = rec.Timestamp
		}
		if rec.Timestamp.After(report.DateTo) {
			report.DateTo = rec.Timestamp
		}

		if rec.ResponseCode != "" {
			report.CodeBreakdown[rec.ResponseCode]++
		}

		switch {
		case rec.Status == "success":
			report.Approved++
			report.AmountApproved += rec.Amount
			report.AmountByCurrency[rec.Currency] += rec.Amount
		case rec.ResponseCode != "":
			report.Declined++
		default:
			report.Errored++
		}
	}
	return report
}
