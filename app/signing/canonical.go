package signing

import (
	"fmt"
	"sort"
	"strings"
)

// MissingFieldError is returned when an explicit-order canonicalization is
// asked for a field the request did not carry. A signature computed over an
// attacker-completable field set must never verify, so the serializer fails
// instead of substituting an empty value.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("canonicalization field is missing: %s", e.Field)
}

// SortedByKey selects the fields whose name carries the given prefix,
// lowercases each key=value pair, sorts the pairs by key, and joins them
// with "&". An empty prefix selects every field.
func SortedByKey(fields map[string]string, prefix string) []byte {
	pairs := make([]string, 0, len(fields))
	for key, value := range fields {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(key), strings.ToLower(prefix)) {
			continue
		}
		pairs = append(pairs, strings.ToLower(key)+"="+strings.ToLower(value))
	}
	sort.Strings(pairs)
	return []byte(strings.Join(pairs, "&"))
}

// ExplicitOrder joins key=value pairs in exactly the order the gateway
// demands, separated by sep. Keys and values are used verbatim.
func ExplicitOrder(fields map[string]string, order []string, sep string) ([]byte, error) {
	pairs := make([]string, 0, len(order))
	for _, key := range order {
		value, ok := fields[key]
		if !ok {
			return nil, &MissingFieldError{Field: key}
		}
		pairs = append(pairs, key+"="+value)
	}
	return []byte(strings.Join(pairs, sep)), nil
}
