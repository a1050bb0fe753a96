// Package envelope models the inbound envelope container (spec.md §3, §6):
// a header plus an ordered list of items, and the newline-delimited wire
// framing used to parse one off the wire.
package envelope

// ItemType is the declared kind of one envelope item.
type ItemType string

const (
	ItemEvent          ItemType = "event"
	ItemTransaction    ItemType = "transaction"
	ItemAttachment     ItemType = "attachment"
	ItemSession        ItemType = "session"
	ItemSessions       ItemType = "sessions"
	ItemSecurity       ItemType = "security"
	ItemRawSecurity    ItemType = "raw_security"
	ItemUserReport     ItemType = "user_report"
	ItemFormData       ItemType = "form_data"
	ItemUnrealReport   ItemType = "unreal_report"
	ItemMetrics        ItemType = "metrics"
	ItemMetricBuckets  ItemType = "metric_buckets"
)

// DataCategory is the rate-limit/outcome accounting bucket an item or
// whole envelope is charged against.
type DataCategory string

const (
	CategoryError       DataCategory = "error"
	CategoryTransaction DataCategory = "transaction"
	CategorySecurity    DataCategory = "security"
	CategoryAttachment  DataCategory = "attachment"
	CategorySession     DataCategory = "session"
	CategoryDefault     DataCategory = "default"
)

// Header is the envelope's own metadata line.
type Header struct {
	EventID      string
	DSN          string
	SentAt       string
	RemoteAddr   string
	ClientSDKName    string
	ClientSDKVersion string
}

// Item is one entry of the envelope's ordered item list.
type Item struct {
	Type           ItemType
	ContentType    string
	Length         int64
	Filename       string
	AttachmentType string // e.g. "event.minidump", "event.applecrashreport", "unreal.context"

	// CreatesEvent is true for item types that produce (or are) the
	// pipeline's event: event, transaction, security/raw_security,
	// unreal_report, and event-creating attachments (minidump/apple
	// crash report/unreal context).
	CreatesEvent bool

	// RateLimited is set by the rate-limit enforcer on an event-creating
	// attachment that is kept under an attachment limit; items dropped for
	// a quota are removed from the envelope instead.
	RateLimited bool

	Payload []byte
}

// Envelope is a header plus an ordered list of items; item order is
// preserved end to end.
type Envelope struct {
	Header Header
	Items  []*Item
}

// New returns an empty envelope with the given header.
func New(header Header) *Envelope {
	return &Envelope{Header: header}
}

// Add appends item, preserving order.
func (e *Envelope) Add(item *Item) {
	e.Items = append(e.Items, item)
}

// RemoveAt deletes the item at index i, preserving the order of the rest.
func (e *Envelope) RemoveAt(i int) {
	if i < 0 || i >= len(e.Items) {
		return
	}
	e.Items = append(e.Items[:i], e.Items[i+1:]...)
}

// requiresEvent reports whether item's category is only meaningful in the
// presence of an event-creating item (spec.md §4.5 item dependency rule:
// attachments that don't themselves create an event "require" the event
// item to survive).
func (i *Item) requiresEvent() bool {
	return i.Type == ItemAttachment && !i.CreatesEvent
}

// RequiresEvent exports requiresEvent for the rate-limit enforcer.
func (i *Item) RequiresEvent() bool { return i.requiresEvent() }

// Category infers the data category an item is charged against.
func (i *Item) Category() DataCategory {
	switch i.Type {
	case ItemEvent:
		return CategoryError
	case ItemTransaction:
		return CategoryTransaction
	case ItemSecurity, ItemRawSecurity:
		return CategorySecurity
	case ItemUnrealReport:
		return CategoryError
	case ItemAttachment:
		if i.CreatesEvent {
			return CategoryError
		}
		return CategoryAttachment
	case ItemSession, ItemSessions:
		return CategorySession
	default:
		return CategoryDefault
	}
}

// EventCreatingAttachmentTypes are the AttachmentType values that cause an
// attachment item to stand in for the event item.
var EventCreatingAttachmentTypes = map[string]bool{
	"event.minidump":         true,
	"event.applecrashreport": true,
	"unreal.context":         true,
}
