package soil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a content hash of r used as its deduplication key.
// Fields are serialised as name=value pairs sorted by name, so the result
// depends only on the values. Negative zero hashes like zero.
//
// xxHash64 is not collision resistant against an adversary; switch to a
// cryptographic hash if fingerprints ever guard anything beyond dedup.
func Fingerprint(r Reading) string {
	return FingerprintValues(r.Values())
}

// FingerprintValues hashes field-keyed values in canonical order.
func FingerprintValues(values map[Field]float64) string {
	names := make([]string, 0, len(values))
	for f := range values {
		names = append(names, string(f))
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		v := values[Field(name)]
		if v == 0 {
			v = 0
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
