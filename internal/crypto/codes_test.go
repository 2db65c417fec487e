package crypto

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShareCode_AlphabetAndLength(t *testing.T) {
	t.Parallel()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		c, err := ShareCode()
		require.NoError(t, err)
		require.Len(t, c, ShareCodeLen)
		for _, r := range c {
			require.True(t, strings.ContainsRune(shareAlphabet, r), "unexpected rune %q in %s", r, c)
		}
		seen[c] = true
	}
	require.Greater(t, len(seen), 190)
}

func TestVerificationCode_SixDigits(t *testing.T) {
	t.Parallel()
	for i := 0; i < 500; i++ {
		c, err := VerificationCode()
		require.NoError(t, err)
		require.Len(t, c, 6)
		n, err := strconv.Atoi(c)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}
