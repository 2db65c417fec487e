package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// shareAlphabet omits 0/O and 1/I so codes survive being read aloud.
const shareAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ShareCodeLen is the length of generated share codes.
const ShareCodeLen = 8

// ShareCode returns a random human-typable capture share code.
func ShareCode() (string, error) {
	b := make([]byte, ShareCodeLen)
	max := big.NewInt(int64(len(shareAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = shareAlphabet[n.Int64()]
	}
	return string(b), nil
}

// VerificationCode returns a six-digit numeric code in [100000, 999999].
func VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
