package redisx

import "time"

const (
	// Failed login counter: login_fail:{email} -> n
	KeyLoginFailures = "login_fail:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
