// Package redis stores sessions and verification codes in Redis hashes.
// Keys carry a TTL a little past their logical expiry so expired rows are
// still observable (and reportable as expired) before Redis drops them.
package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRetention is how long a key outlives its logical expiry.
const DefaultRetention = 24 * time.Hour

func encodeTime(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func decodeTime(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// Pinger adapts a client to the readiness checker.
type Pinger struct{ Client goredis.UniversalClient }

// Ping issues PING.
func (p Pinger) Ping(ctx context.Context) error { return p.Client.Ping(ctx).Err() }
