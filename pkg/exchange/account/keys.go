package account

import "fmt"

// Pebble key schema. Account IDs are opaque caller-supplied strings, so the
// schema is a single prefix; prefix scans enumerate all accounts.
const prefixAccount = "acc:"

func accountKey(id string) []byte {
	return []byte(prefixAccount + id)
}

func accountIDFromKey(key []byte) (string, error) {
	if len(key) <= len(prefixAccount) {
		return "", fmt.Errorf("invalid account key: %q", key)
	}
	return string(key[len(prefixAccount):]), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
