// Package daily picks a deterministic starting word per calendar day and
// keeps the daily chain leaderboard.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"time"
)

// DateKey is the UTC calendar day of t, e.g. "2026-10-18".
func DateKey(t time.Time) string { return t.In(time.UTC).Format(time.DateOnly) }

// StartWord returns the day's starting word: the HMAC-SHA256 of the date
// key under salt, read as a big-endian uint64, selects from candidates.
// Every caller passing the same day, salt and (sorted) candidates agrees.
func StartWord(day time.Time, salt string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(salt))
	_, _ = io.WriteString(mac, DateKey(day))
	pick := binary.BigEndian.Uint64(mac.Sum(nil)) % uint64(len(candidates))
	return candidates[pick]
}
