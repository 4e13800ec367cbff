package codegen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the fixed width of generated passcodes.
const CodeLength = 6

var codeSpace = big.NewInt(1000000)

// Generator produces one-time numeric passcodes.
type Generator interface {
	// Generate returns a new 6-digit numeric code, zero-padded.
	Generate() (string, error)
}

// CryptoRand is a Generator backed by crypto/rand.
type CryptoRand struct{}

// NewCryptoRand returns a Generator drawing codes from the OS CSPRNG.
func NewCryptoRand() *CryptoRand {
	return &CryptoRand{}
}

// Generate draws uniformly from 000000-999999 and renders a fixed-width
// 6-character decimal string, preserving leading zeros.
func (*CryptoRand) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("codegen: read random: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
