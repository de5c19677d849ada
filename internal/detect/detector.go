// Package detect evaluates normalized records against the rule catalog and
// derives statistics and an attack timeline from the resulting alerts.
package detect

import (
	"fmt"

	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/rules"
)

// UnknownKey replaces an empty address or username in tracked rules.
// Records with no address therefore share one "unknown" bucket and alerts
// name it, rather than reporting attempts from an empty address.
const UnknownKey = "unknown"

// Detector runs the catalog over a record corpus. It holds no mutable state,
// so one Detector may serve concurrent calls on independent snapshots.
type Detector struct {
	catalog *rules.Catalog
}

// New creates a detector for catalog. A nil catalog uses the built-in rules.
func New(catalog *rules.Catalog) *Detector {
	if catalog == nil {
		catalog = rules.Default()
	}
	return &Detector{catalog: catalog}
}

// Catalog returns the rules the detector evaluates.
func (d *Detector) Catalog() *rules.Catalog {
	return d.catalog
}

// Buckets holds per-key match counts for one tracked rule.
// Only ByIP gates emission; ByUser is reported but inert.
type Buckets struct {
	ByIP   map[string]int `json:"by_ip"`
	ByUser map[string]int `json:"by_user"`
}

// Result is the outcome of one detection run.
type Result struct {
	Alerts []model.Alert
	// Attempts maps a tracked rule name to its buckets.
	Attempts map[string]*Buckets
}

// Detect runs a fresh pass over records and returns the alerts.
func (d *Detector) Detect(records []*model.LogRecord) ([]model.Alert, error) {
	res, err := d.Run(records)
	if err != nil {
		return nil, err
	}
	return res.Alerts, nil
}

// Run runs a fresh pass over records. For each record in input order every
// rule is tried in catalog order. Untracked rules alert on every match.
// Tracked rules count the match in the record's buckets and alert on this
// and every later match once the IP bucket reaches the threshold.
func (d *Detector) Run(records []*model.LogRecord) (*Result, error) {
	res := &Result{
		Alerts:   make([]model.Alert, 0),
		Attempts: make(map[string]*Buckets),
	}

	for i, rec := range records {
		if rec == nil {
			return nil, &ValidationError{Index: i, Reason: "nil record"}
		}
		for _, rule := range d.catalog.Rules() {
			if !rule.Matches(rec.Message) {
				continue
			}
			if !rule.Tracked() {
				res.emit(rule, rec, rule.Description, rec.IPAddress, rec.Username)
				continue
			}

			ip := keyOrUnknown(rec.IPAddress)
			user := keyOrUnknown(rec.Username)
			b := res.buckets(rule.Name)
			b.ByIP[ip]++
			b.ByUser[user]++

			if n := b.ByIP[ip]; n >= rule.Threshold {
				desc := fmt.Sprintf("%s - %d attempts from %s", rule.Description, n, ip)
				res.emit(rule, rec, desc, ip, user)
			}
		}
	}
	return res, nil
}

func (r *Result) emit(rule *rules.Rule, rec *model.LogRecord, desc, ip, user string) {
	r.Alerts = append(r.Alerts, model.Alert{
		ID:          len(r.Alerts) + 1,
		Type:        rule.Name,
		Severity:    rule.Severity,
		Description: desc,
		Timestamp:   rec.Timestamp,
		Source:      rec.Source,
		IPAddress:   ip,
		Username:    user,
		Details:     rec.Message,
		LogID:       rec.ID,
	})
}

func (r *Result) buckets(rule string) *Buckets {
	b, ok := r.Attempts[rule]
	if !ok {
		b = &Buckets{ByIP: make(map[string]int), ByUser: make(map[string]int)}
		r.Attempts[rule] = b
	}
	return b
}

func keyOrUnknown(s string) string {
	if s == "" {
		return UnknownKey
	}
	return s
}
