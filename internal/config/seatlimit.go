package config

import "time"

// SeatLimit bounds how fast one holder may mutate the seats of one showing.
// A holder starts with Burst requests and earns one back every Every.  Redis
// forgets a bucket after Idle without traffic.
type SeatLimit struct {
    Enabled bool
    Burst   int
    Every   time.Duration
    Idle    time.Duration
    Prefix  string
}

// LoadSeatLimit reads the SEAT_LIMIT_* variables.
func LoadSeatLimit() SeatLimit {
    return SeatLimit{
        Enabled: envBool("SEAT_LIMIT_ENABLED", true),
        Burst:   envInt("SEAT_LIMIT_BURST", 10),
        Every:   envDur("SEAT_LIMIT_EVERY", 500*time.Millisecond),
        Idle:    envDur("SEAT_LIMIT_IDLE", 10*time.Minute),
        Prefix:  envStr("SEAT_LIMIT_PREFIX", "seatlimit"),
    }.normalized()
}

// normalized clamps the limit to values the bucket script accepts.  Idle is
// at least a full refill, otherwise an emptied bucket could expire and come
// back full early.
func (l SeatLimit) normalized() SeatLimit {
    if l.Burst < 1 {
        l.Burst = 1
    }
    if l.Every < time.Millisecond {
        l.Every = time.Millisecond
    }
    if full := time.Duration(l.Burst) * l.Every; l.Idle < full {
        l.Idle = full
    }
    if l.Prefix == "" {
        l.Prefix = "seatlimit"
    }
    return l
}
