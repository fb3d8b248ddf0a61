package console

import (
	"iter"
	"strings"

	"github.com/cppla/ecorecycle/models"
)

// ViewState is the per-session filter, search text and interaction flag.
//
// interacted only ever goes from false to true. It flips on a filter or
// search change, a manual refresh, and any accept, reject, delete or
// per-submission retention change. Loads, realtime pushes and countdown
// ticks leave it alone, so a background event never flashes the empty state.
type ViewState struct {
	StatusFilter models.SubmissionStatus
	SearchText   string
	interacted   bool
}

func (v *ViewState) Interacted() bool {
	return v.interacted
}

func (v *ViewState) MarkInteracted() {
	v.interacted = true
}

// Matches reports whether s passes both the status and the search predicate.
func (v ViewState) Matches(s models.Submission) bool {
	return matcher(v.StatusFilter, v.SearchText)(s)
}

// Filter yields the items passing Matches, in their original order.
// The sequence is restartable and uses the filter and search text as they
// were when Filter was called.
func (v ViewState) Filter(items []models.Submission) iter.Seq[models.Submission] {
	match := matcher(v.StatusFilter, v.SearchText)
	return func(yield func(models.Submission) bool) {
		for _, s := range items {
			if !match(s) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

func matcher(status models.SubmissionStatus, search string) func(models.Submission) bool {
	q := strings.ToLower(strings.TrimSpace(search))
	return func(s models.Submission) bool {
		if status != "" && s.Status != status {
			return false
		}
		if q == "" {
			return true
		}
		for _, field := range []string{s.Name, s.Mobile, s.Email, s.ProductDetails} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}
}
