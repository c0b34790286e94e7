package app

import (
	"math/rand/v2"

	"github.com/dkeye/physio/internal/domain"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCodes draws fixed-length codes from [A-Z0-9], retrying collisions
// up to MaxAttempts times.
type RandomCodes struct {
	Length      int
	MaxAttempts int
}

func NewRandomCodes(length, maxAttempts int) *RandomCodes {
	return &RandomCodes{Length: length, MaxAttempts: maxAttempts}
}

func (g *RandomCodes) GenerateUniqueCode(taken func(code string) bool) (string, error) {
	for range g.MaxAttempts {
		code := g.next()
		if !taken(code) {
			return code, nil
		}
	}
	return "", domain.ErrResourceExhausted
}

func (g *RandomCodes) next() string {
	b := make([]byte, g.Length)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
