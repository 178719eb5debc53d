package pubsub

import (
	"crypto/rand"
)

const (
	nonceLength   = 30
	nonceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// maxUnbiased is the largest multiple of len(nonceAlphabet) that fits in
// a byte; larger bytes are rejected to keep the draw uniform.
const maxUnbiased = 256 - 256%len(nonceAlphabet)

// newNonce returns a 30-character string drawn uniformly from [0-9a-zA-Z].
func newNonce() string {
	out := make([]byte, 0, nonceLength)
	buf := make([]byte, nonceLength)
	for len(out) < nonceLength {
		if _, err := rand.Read(buf); err != nil {
			panic("pubsub: crypto/rand unavailable: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, nonceAlphabet[int(b)%len(nonceAlphabet)])
			if len(out) == nonceLength {
				break
			}
		}
	}
	return string(out)
}
