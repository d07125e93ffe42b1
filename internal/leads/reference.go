package leads

import (
	"fmt"
	"math/rand/v2"
)

// Reference code prefixes used by the two intake channels.
const (
	BookingReferencePrefix = "REF"
	ChatReferencePrefix    = "CHAT"
)

// NewReferenceCode returns a short human code such as "REF-4821". The numeric
// part is uniformly drawn from 1000-9999 and is not guaranteed unique.
func NewReferenceCode(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, 1000+rand.IntN(9000))
}
