package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keySep = ":"

// Key joins prefix and parts with ':'. Parts are formatted with %v.
func Key(prefix string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteString(keySep)
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// TextKey folds case and whitespace out of free text and returns a fixed
// 32-char digest, so "Apple  earnings" and "apple earnings" share an entry.
func TextKey(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:16])
}
