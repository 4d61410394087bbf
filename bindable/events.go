package bindable

import (
	"time"

	"github.com/hazyhaar/dombind/bindable/event"
	"github.com/hazyhaar/dombind/idgen"
)

// FromReport converts a Report into a scan event with a fresh ID.
func FromReport(rep Report) event.Scan {
	ev := event.Scan{
		ID:         idgen.ScanID(),
		Binder:     rep.Binder,
		Passes:     rep.Passes,
		Matched:    rep.Matched,
		Bound:      rep.Bound,
		Failed:     rep.Failed,
		Skipped:    rep.Skipped,
		Coalesced:  rep.Coalesced,
		DurationMS: rep.Duration.Milliseconds(),
		Timestamp:  time.Now().UnixMilli(),
	}
	for _, f := range rep.Failures() {
		ev.Failures = append(ev.Failures, event.Failure{
			Element: f.Element.String(),
			Error:   f.Err.Error(),
		})
	}
	return ev
}
