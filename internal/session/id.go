package session

import (
	"fmt"
	"math/rand"
	"time"
)

// NewID mints an opaque session identifier: two random five-digit integers
// around a millisecond timestamp. Uniqueness is probabilistic, not
// guaranteed; a collision silently merges two clients' histories.
func NewID() string {
	return fmt.Sprintf("%d_%d_%d",
		10000+rand.Intn(90000),
		time.Now().UnixMilli(),
		10000+rand.Intn(90000),
	)
}
