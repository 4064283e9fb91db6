package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// cacheKey derives a deterministic key from the item name and its
// canonicalized input payload. encoding/json serializes map keys in
// sorted order at every nesting level, so two payloads that differ
// only in key order produce the same key.
func cacheKey(item string, input map[string]any) string {
	data, err := json.Marshal(input)
	if err != nil {
		// Unserializable payloads never match anything.
		data = []byte(fmt.Sprintf("%v", input))
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", item, sum)
}
