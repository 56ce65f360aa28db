package alerting

import (
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strconv"

	"github.com/netvigil/vigil-core/internal/models"
)

// Fingerprint computes the stable identity hash of an alert's semantic
// fields: name, severity, component, labels, and values. Occurrence id and
// timestamp never participate, so duplicate occurrences of the same
// condition always hash identically. FNV-1a is enough here; this is a
// dedup/silence key, not a security boundary.
func Fingerprint(alert *models.Alert) string {
	h := fnv.New64a()

	io.WriteString(h, alert.Name)
	io.WriteString(h, "\xff")
	io.WriteString(h, alert.Severity)
	io.WriteString(h, "\xff")
	io.WriteString(h, alert.Component)
	io.WriteString(h, "\xff")

	// Canonical sorted-key serialization; map iteration order must not leak
	// into the hash.
	labelKeys := make([]string, 0, len(alert.Labels))
	for k := range alert.Labels {
		labelKeys = append(labelKeys, k)
	}
	sort.Strings(labelKeys)
	for _, k := range labelKeys {
		io.WriteString(h, k)
		io.WriteString(h, "=")
		io.WriteString(h, alert.Labels[k])
		io.WriteString(h, "\xfe")
	}
	io.WriteString(h, "\xff")

	valueKeys := make([]string, 0, len(alert.Values))
	for k := range alert.Values {
		valueKeys = append(valueKeys, k)
	}
	sort.Strings(valueKeys)
	for _, k := range valueKeys {
		io.WriteString(h, k)
		io.WriteString(h, "=")
		io.WriteString(h, strconv.FormatFloat(alert.Values[k], 'g', -1, 64))
		io.WriteString(h, "\xfe")
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
