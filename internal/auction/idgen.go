package auction

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const auctionIDLength = 8

// NewAuctionID generates a short human-quotable auction id. 40 random bits
// keep collisions out of reach at this catalogue size; the store's primary
// key still rejects the astronomically unlikely duplicate.
func NewAuctionID() (string, error) {
	bytes := make([]byte, 5)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base32.StdEncoding.EncodeToString(bytes)
	return "AU" + strings.ToUpper(encoded[:auctionIDLength]), nil
}

// NewBidID generates a bid ledger id.
func NewBidID() string {
	return uuid.NewString()
}
