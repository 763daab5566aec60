package feed

import (
	"strconv"
	"strings"
	"time"
)

// OffsetAge returns the elapsed time since the UNIX-timestamp prefix of a
// two-part cursor like "1731103209.0000000001" (timestamp, then increment).
// ok is false for cursors in any other format, including the composite
// "timestamp.seq.shard.hash" variant, whose prefix is not a wall clock the
// cooldown can rely on.
func OffsetAge(offset Offset, now time.Time) (age time.Duration, ok bool) {
	parts := strings.Split(string(offset), ".")
	if len(parts) != 2 {
		return 0, false
	}
	ts, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	stamp := time.Unix(0, int64(ts*float64(time.Second)))
	return now.Sub(stamp), true
}
