package detect

import "github.com/tinytelemetry/logwatch/internal/model"

// alertKey identifies an alert across runs. Ids are per-run sequence numbers
// and cannot be compared; the description carries the brute-force count, so
// every armed match stays distinct.
type alertKey struct {
	typ   string
	logID int64
	desc  string
}

func keyOf(a model.Alert) alertKey {
	return alertKey{typ: a.Type, logID: a.LogID, desc: a.Description}
}

// NewAlerts returns the alerts in cur whose identity does not appear in prev,
// preserving cur's order.
func NewAlerts(prev, cur []model.Alert) []model.Alert {
	seen := make(map[alertKey]int, len(prev))
	for _, a := range prev {
		seen[keyOf(a)]++
	}
	out := make([]model.Alert, 0)
	for _, a := range cur {
		k := keyOf(a)
		if seen[k] > 0 {
			seen[k]--
			continue
		}
		out = append(out, a)
	}
	return out
}
