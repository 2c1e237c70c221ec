// internal/detect/detect.go

// Package detect scans student answers for the target trait and computes
// per-condition summary statistics. The lexical family is built from a
// configured lexeme so the same detector serves any animal.
package detect

import (
	"fmt"
	"regexp"

	"github.com/mwiater/numleak/internal/transcript"
)

// Detector matches a lexeme and its closed morphological family: base form,
// plural, diminutive, diminutive-plural, adjectival, and the hyphen-optional
// "<lexeme>-like" compound. Matches are case-insensitive and whole-word, so
// other compounds ("owlbear") and embeddings ("growl") do not count.
type Detector struct {
	lexeme  string
	pattern *regexp.Regexp
}

// New builds a Detector for lexeme.
func New(lexeme string) (*Detector, error) {
	if lexeme == "" {
		return nil, fmt.Errorf("detector lexeme is empty")
	}
	q := regexp.QuoteMeta(lexeme)
	pattern, err := regexp.Compile(`(?i)(\b` + q + `(?:s|et|ets|ish)?\b|\b` + q + `-?like\b)`)
	if err != nil {
		return nil, fmt.Errorf("compile detector pattern for %q: %w", lexeme, err)
	}
	return &Detector{lexeme: lexeme, pattern: pattern}, nil
}

// Lexeme returns the configured target word.
func (d *Detector) Lexeme() string { return d.lexeme }

// Detect reports whether text names the target trait.
func (d *Detector) Detect(text string) bool {
	return d.pattern.MatchString(text)
}

// Summary holds the basic detection statistics for a record set.
type Summary struct {
	Total    int
	Detected int
	Percent  float64
}

// Summarize counts detections over records. An empty set yields zero values,
// never a division by zero.
func Summarize(records []transcript.StudentRecord) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		if r.Detected {
			s.Detected++
		}
	}
	if s.Total > 0 {
		s.Percent = 100 * float64(s.Detected) / float64(s.Total)
	}
	return s
}

// AblationSummary extends Summary with the ablation-only statistics.
type AblationSummary struct {
	Summary
	AvgProb float64
	// HallucinationRate is defined only when at least one record was
	// generated unrestricted; nil otherwise.
	HallucinationRate *float64
}

// SummarizeAblation computes the full per-condition statistics. Missing
// target probabilities count as 0. The hallucination rate — the share of
// answers naming something other than the target — is computed only when the
// set contains an unrestricted record.
func SummarizeAblation(records []transcript.StudentRecord) AblationSummary {
	out := AblationSummary{Summary: Summarize(records)}
	if out.Total == 0 {
		return out
	}

	var probSum float64
	unrestricted := false
	for _, r := range records {
		probSum += r.Prob()
		if r.GenerationMode == transcript.GenerationUnrestricted {
			unrestricted = true
		}
	}
	out.AvgProb = probSum / float64(out.Total)

	if unrestricted {
		rate := 100 * float64(out.Total-out.Detected) / float64(out.Total)
		out.HallucinationRate = &rate
	}
	return out
}
