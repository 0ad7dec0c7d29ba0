package models

import "time"

// EarlySignals is the consolidated public early-opportunity view for a ticker.
// Errors holds a reason per signal that degraded; it is nil when every signal was available.
type EarlySignals struct {
	Ticker     string               `json:"ticker"`
	Timestamp  time.Time            `json:"timestamp"`
	Composite  CompositeSignal      `json:"composite"`
	Insiders   []InsiderTransaction `json:"insiders,omitempty"`
	Filings    []Filing             `json:"filings,omitempty"`
	Headlines  int                  `json:"headlines"`
	Regression *RegressionResult    `json:"regression,omitempty"`
	Classifier *ClassifierResult    `json:"classifier,omitempty"`
	Errors     map[string]string    `json:"errors,omitempty"`
}

// Degraded reports whether any signal fell back to a neutral value.
func (s *EarlySignals) Degraded() bool { return len(s.Errors) > 0 }
