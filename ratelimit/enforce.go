package ratelimit

import "github.com/getsentry/relay-go/envelope"

// Summary is computed once per envelope (spec.md §4.5).
type Summary struct {
	EventCategory       envelope.DataCategory
	HasEventCategory    bool
	AttachmentQuantity  int64
	SessionQuantity     int64
	HasPlainAttachments bool
	EventID             string
	RemoteAddr          string
}

// Summarize computes an envelope's rate-limit Summary. assumeEvent
// implements processing-only "assumed-event mode": the event category is
// treated as present even if no item carries it.
func Summarize(env *envelope.Envelope, assumeEvent bool) Summary {
	s := Summary{EventID: env.Header.EventID, RemoteAddr: env.Header.RemoteAddr}

	for _, item := range env.Items {
		if !s.HasEventCategory && item.CreatesEvent {
			s.HasEventCategory = true
			s.EventCategory = item.Category()
		}
		if item.Type == envelope.ItemAttachment {
			qty := item.Length
			if qty < 1 {
				qty = 1
			}
			s.AttachmentQuantity += qty
			if !item.CreatesEvent {
				s.HasPlainAttachments = true
			}
		}
		if item.Type == envelope.ItemSession {
			s.SessionQuantity++
		}
	}

	if assumeEvent && !s.HasEventCategory {
		s.HasEventCategory = true
		s.EventCategory = envelope.CategoryError
	}
	return s
}

// Removed records one item dropped by enforcement, for outcome emission.
type Removed struct {
	Item         *envelope.Item
	Category     envelope.DataCategory
	AppliedLimit Limit
	Quantity     int64
}

// Result is the outcome of Enforce.
type Result struct {
	Limits  *RateLimits
	Removed []Removed
}

// Enforce runs the three-step check sequence and retention rules of
// spec.md §4.5 over env, mutating env.Items in place (dropping items
// whose quota was exceeded, or flagging RateLimited on retained
// event-creating attachments).
func Enforce(env *envelope.Envelope, summary Summary, assumeEvent bool, check Checker) (*Result, error) {
	result := &Result{Limits: NewRateLimits()}

	var eventLimit *Limit
	if summary.HasEventCategory {
		lims, err := check.Check(summary.EventCategory, 1)
		if err != nil {
			return nil, err
		}
		if l, ok := lims.Get(summary.EventCategory); ok {
			eventLimit = &l
			result.Limits.Add(l)
		}
	}

	var attachmentLimit *Limit
	if eventLimit == nil && summary.AttachmentQuantity > 0 {
		lims, err := check.Check(envelope.CategoryAttachment, summary.AttachmentQuantity)
		if err != nil {
			return nil, err
		}
		if l, ok := lims.Get(envelope.CategoryAttachment); ok {
			attachmentLimit = &l
			if summary.HasPlainAttachments {
				result.Limits.Add(l)
			}
		}
	}

	var sessionLimit *Limit
	if summary.SessionQuantity > 0 {
		lims, err := check.Check(envelope.CategorySession, summary.SessionQuantity)
		if err != nil {
			return nil, err
		}
		if l, ok := lims.Get(envelope.CategorySession); ok {
			sessionLimit = &l
			result.Limits.Add(l)
		}
	}

	kept := env.Items[:0:0]
	for _, item := range env.Items {
		if item.RateLimited {
			kept = append(kept, item)
			continue
		}

		if eventLimit != nil && (item.CreatesEvent || item.RequiresEvent()) {
			result.Removed = append(result.Removed, removal(item, *eventLimit, summary))
			continue
		}

		if attachmentLimit != nil && item.Type == envelope.ItemAttachment {
			if item.CreatesEvent {
				item.RateLimited = true
				kept = append(kept, item)
			} else {
				result.Removed = append(result.Removed, removal(item, *attachmentLimit, summary))
			}
			continue
		}

		if sessionLimit != nil && item.Type == envelope.ItemSession {
			result.Removed = append(result.Removed, removal(item, *sessionLimit, summary))
			continue
		}

		kept = append(kept, item)
	}
	env.Items = kept

	return result, nil
}

func removal(item *envelope.Item, limit Limit, summary Summary) Removed {
	qty := int64(1)
	if item.Type == envelope.ItemAttachment {
		qty = item.Length
		if qty < 1 {
			qty = 1
		}
	}
	return Removed{Item: item, Category: item.Category(), AppliedLimit: limit, Quantity: qty}
}
