// Package deviceflow implements the device authorization relay: code
// generation, state storage and the protocol state machine
package deviceflow

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/wrale/oauth2-device-relay/internal/validation"
)

// Code lengths handed out at issuance
const (
	DeviceCodeLength = 32
	UserCodeLength   = 8
)

// Alphabet is the set of characters codes are drawn from
var Alphabet = validation.Charset

// HumanCode returns a random code of the given length drawn uniformly from Alphabet
func HumanCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		c, err := selectRandomChar(Alphabet)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// selectRandomChar selects a random character from available without modulo bias
func selectRandomChar(available string) (byte, error) {
	availLen := len(available)
	maxNeeded := 256 - (256 % availLen)

	b := make([]byte, 1)
	for {
		if _, err := rand.Read(b); err != nil {
			return 0, fmt.Errorf("generating random byte: %w", err)
		}

		// Reject values that would cause modulo bias
		if int(b[0]) >= maxNeeded {
			continue
		}
		return available[int(b[0])%availLen], nil
	}
}
