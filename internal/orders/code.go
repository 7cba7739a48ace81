package orders

import (
	"crypto/rand"
	"fmt"
)

const (
	codePrefix = "ORD-"
	codeLength = 8
)

// crockford is the Crockford base32 alphabet: no I, L, O or U.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// newCode returns a random human-readable order code such as ORD-7K2M9QXD.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, 0, len(codePrefix)+codeLength)
	out = append(out, codePrefix...)
	for _, b := range buf {
		out = append(out, crockford[int(b)%len(crockford)])
	}
	return string(out), nil
}
