// Package utils holds small shared helpers: id generation, hashing, and
// deep copies for the graph value types.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a new UUID string for entity identity.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateExecutionID returns the human-facing execution identifier shown in
// run listings, e.g. "exec-20260901-4f2a1c".
func GenerateExecutionID(now time.Time) string {
	return fmt.Sprintf("exec-%s-%06x", now.Format("20060102"), rand.Intn(1<<24))
}

// IsEmpty reports whether a string is empty or whitespace only.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// HashJSON returns a stable SHA-256 hex digest of v's JSON encoding. Used to
// detect whether a graph changed between snapshots.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CloneMap deep-copies a string-keyed map, including nested maps and slices.
// Non-container values are copied by assignment.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return CloneMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// CloneStrings copies a string slice.
func CloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to i.
func Int64Ptr(i int64) *int64 { return &i }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
