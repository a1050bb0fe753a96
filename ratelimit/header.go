package ratelimit

import (
	"strconv"
	"strings"

	"github.com/getsentry/relay-go/envelope"
)

// FormatHeader renders the active limits as an X-Sentry-Rate-Limits header
// value: comma-separated entries of
// "retry_after:category(;category)*:scope(:reason_code)?".
func (r *RateLimits) FormatHeader() string {
	if r == nil || r.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(r.limits))
	for _, l := range r.limits {
		parts = append(parts, formatEntry(l))
	}
	return strings.Join(parts, ", ")
}

func formatEntry(l Limit) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(l.RetryAfter))
	b.WriteByte(':')
	b.WriteString(string(l.Category))
	b.WriteByte(':')
	b.WriteString(string(l.Scope))
	if l.Reason != "" {
		b.WriteByte(':')
		b.WriteString(string(l.Reason))
	}
	return b.String()
}

// ParseHeader parses an X-Sentry-Rate-Limits header value (as received from
// an upstream relay, or re-parsed back from one this relay emitted) into a
// RateLimits set. Malformed entries (missing/non-numeric retry_after) are
// skipped rather than rejecting the whole header.
func ParseHeader(header string) *RateLimits {
	out := NewRateLimits()
	for _, entry := range strings.Split(header, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ":")

		retryAfter, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		var categories []string
		if len(fields) > 1 {
			for _, cat := range strings.Split(fields[1], ";") {
				if cat != "" {
					categories = append(categories, cat)
				}
			}
		}

		var scope Scope
		if len(fields) > 2 {
			scope = Scope(fields[2])
		}

		var reason ReasonCode
		if len(fields) > 3 {
			reason = ReasonCode(fields[3])
		}

		if len(categories) == 0 {
			// No category restriction: applies to every known category.
			for _, cat := range allCategories {
				out.Add(Limit{Category: cat, RetryAfter: retryAfter, Scope: scope, Reason: reason})
			}
			continue
		}
		for _, cat := range categories {
			out.Add(Limit{Category: envelope.DataCategory(cat), RetryAfter: retryAfter, Scope: scope, Reason: reason})
		}
	}
	return out
}

var allCategories = []envelope.DataCategory{
	envelope.CategoryError,
	envelope.CategoryTransaction,
	envelope.CategorySecurity,
	envelope.CategoryAttachment,
	envelope.CategorySession,
	envelope.CategoryDefault,
}
