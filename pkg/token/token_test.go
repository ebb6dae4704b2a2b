package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndUniqueness(t *testing.T) {
	first, err := Generate(DefaultLength)
	require.NoError(t, err)
	require.Len(t, first, DefaultLength*2)

	decoded, err := hex.DecodeString(first)
	require.NoError(t, err)
	require.Len(t, decoded, DefaultLength)

	second, err := Generate(DefaultLength)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestGenerateDefaultsLength(t *testing.T) {
	raw, err := Generate(0)
	require.NoError(t, err)
	require.Len(t, raw, DefaultLength*2)
}

func TestDigestIsStableAndOpaque(t *testing.T) {
	raw, err := Generate(DefaultLength)
	require.NoError(t, err)

	digest := Digest(raw)
	require.Len(t, digest, 64) // sha256 hex
	require.Equal(t, digest, Digest(raw))
	require.NotEqual(t, raw, digest)
	require.NotEqual(t, digest, Digest(raw+"x"))
}
