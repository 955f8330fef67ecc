package service

import (
	"bytes"
	"testing"

	"solana-custody-gateway/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSplitSecret_PartitionSizes(t *testing.T) {
	// 64 bytes encode to 88 base64 characters: 30/29/29.
	parts, err := SplitSecret(bytes.Repeat([]byte{0xab}, 64), 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 30)
	assert.Len(t, parts[1], 29)
	assert.Len(t, parts[2], 29)
}

func TestSplitSecret_ShortSecrets(t *testing.T) {
	for _, secret := range [][]byte{{}, {1}, {1, 2, 3}} {
		for _, n := range []int{2, 3, 5} {
			parts, err := SplitSecret(secret, n)
			require.NoError(t, err, "len=%d n=%d", len(secret), n)
			require.Len(t, parts, n)

			got, err := ReconstructSecret(parts)
			require.NoError(t, err, "len=%d n=%d", len(secret), n)
			assert.True(t, bytes.Equal(secret, got), "len=%d n=%d", len(secret), n)
		}
	}

	parts, err := SplitSecret([]byte{1}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "Q", "=", "=", ""}, parts)
}

func TestSplitSecret_InvalidCount(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		_, err := SplitSecret([]byte("secret"), n)
		assert.ErrorIs(t, err, domain.ErrInvalidFragmentCount)
	}
}

func TestReconstructSecret_Insufficient(t *testing.T) {
	_, err := ReconstructSecret(nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientFragments)

	_, err = ReconstructSecret([]string{"AAAA"})
	assert.ErrorIs(t, err, domain.ErrInsufficientFragments)
}

func TestReconstructSecret_Corrupt(t *testing.T) {
	_, err := ReconstructSecret([]string{"!!", "??"})
	assert.ErrorIs(t, err, domain.ErrInvalidKeyMaterial)
}

func TestSplitReconstruct_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.SampledFrom([]int{2, 3, 5}).Draw(t, "n")
		secret := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(t, "secret")

		parts, err := SplitSecret(secret, n)
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		if len(parts) != n {
			t.Fatalf("got %d parts, want %d", len(parts), n)
		}
		for i := 1; i < n; i++ {
			if d := len(parts[i-1]) - len(parts[i]); d < 0 || d > 1 {
				t.Fatalf("parts %d and %d are not near-equal", i-1, i)
			}
		}

		got, err := ReconstructSecret(parts)
		if err != nil {
			t.Fatalf("reconstruct: %v", err)
		}
		if !bytes.Equal(got, secret) {
			t.Fatalf("round trip mismatch")
		}
	})
}
