// Package outcome defines the structured accounting record spec.md §6
// describes ("Outbound outcome record") and the Producer interface that
// stands in for the Kafka sink the spec explicitly scopes out (Non-goals:
// "Kafka production ... no Kafka client is wired").
package outcome

import (
	"time"

	"github.com/getsentry/relay-go/envelope"
	"github.com/getsentry/relay-go/ratelimit"
)

// Outcome enumerates the disposition of one accounted item.
type Outcome string

const (
	Accepted    Outcome = "accepted"
	Filtered    Outcome = "filtered"
	RateLimited Outcome = "rate_limited"
	Invalid     Outcome = "invalid"
	Abuse       Outcome = "abuse"
)

// Scoping is the organization/project/key identity used for quota
// accounting and outcome attribution (spec.md glossary: "Scoping").
type Scoping struct {
	OrganizationID string
	ProjectID      string
	KeyID          string
	PublicKey      string
}

// Record is one outbound outcome (spec.md §6).
type Record struct {
	Timestamp  time.Time
	Scoping    Scoping
	Outcome    Outcome
	Code       string // filtered/invalid/rate_limited reason code, empty otherwise
	EventID    string
	RemoteAddr string
	Category   envelope.DataCategory
	Quantity   int64
}

// Producer accepts outcome records for delivery to whatever sink the
// deployment wires up (Kafka in the original; an interface here so no
// wire-protocol client is owned by this module).
type Producer interface {
	Track(Record)
}

// ProducerFunc adapts a plain function to Producer.
type ProducerFunc func(Record)

// Track implements Producer.
func (f ProducerFunc) Track(r Record) { f(r) }

// NoopProducer discards every record; the default when no sink is
// configured (e.g. non-processing relay instances forward raw envelopes and
// never originate outcomes themselves).
var NoopProducer Producer = ProducerFunc(func(Record) {})

// FromRemoved builds one outcome record per item removed by
// ratelimit.Enforce, per spec.md §4.5's "Outcome emission" rule: timestamp
// now, the envelope's scoping, the applied limit's reason code, the
// envelope's event id and remote address, the item's category, and the
// item's charged quantity.
func FromRemoved(scoping Scoping, eventID, remoteAddr string, removed []ratelimit.Removed) []Record {
	records := make([]Record, 0, len(removed))
	for _, r := range removed {
		records = append(records, Record{
			Timestamp:  time.Now(),
			Scoping:    scoping,
			Outcome:    RateLimited,
			Code:       string(r.AppliedLimit.Reason),
			EventID:    eventID,
			RemoteAddr: remoteAddr,
			Category:   r.Category,
			Quantity:   r.Quantity,
		})
	}
	return records
}
