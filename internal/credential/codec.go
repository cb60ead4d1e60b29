// Package credential hashes and verifies account passwords with bcrypt.
// The salt and cost are embedded in every hash, so raising the cost only
// affects new hashes; existing ones keep verifying.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the work factor the storefront has always used.
const DefaultCost = 10

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

type Codec struct {
	cost int
}

func NewCodec(cost int) (*Codec, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Codec{cost: cost}, nil
}

func (c *Codec) Cost() int { return c.cost }

func (c *Codec) Hash(plaintext string) (string, error) {
	// bcrypt ignores everything past 72 bytes; refuse rather than truncate.
	if len(plaintext) > 72 {
		return "", ErrPasswordTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plaintext reproduces hash. A malformed hash never
// verifies.
func (c *Codec) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost.
func (c *Codec) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != c.cost
}
