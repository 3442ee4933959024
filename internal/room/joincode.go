package room

import (
	"crypto/rand"
	"fmt"
)

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const joinCodeLength = 6

// generateJoinCode draws a single 6-character code from crypto/rand. The
// store calling this retries on collision (rejection sampling over the
// full live-room set); a cryptographic source is a deliberate strengthening
// over math/rand since a join code is effectively a short-lived access
// credential to a room's chat and membership.
func generateJoinCode() (JoinCode, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("room: generating join code: %w", err)
	}
	out := make([]byte, joinCodeLength)
	for i, b := range buf {
		out[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return JoinCode(out), nil
}
