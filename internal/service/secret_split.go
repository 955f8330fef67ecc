package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	"solana-custody-gateway/internal/core/domain"
)

const minFragments = 2

// SplitSecret base64-encodes secret and partitions the encoding into n
// contiguous parts. The first len%n parts carry one extra character; when the
// encoding is shorter than n the trailing parts are empty.
// Any single part reveals a slice of the encoding; this is not a threshold scheme.
func SplitSecret(secret []byte, n int) ([]string, error) {
	if n < minFragments {
		return nil, domain.ErrInvalidFragmentCount
	}

	encoded := base64.StdEncoding.EncodeToString(secret)

	size, extra := len(encoded)/n, len(encoded)%n
	parts := make([]string, 0, n)
	offset := 0
	for i := 0; i < n; i++ {
		l := size
		if i < extra {
			l++
		}
		parts = append(parts, encoded[offset:offset+l])
		offset += l
	}
	return parts, nil
}

// ReconstructSecret concatenates parts in order and decodes the result.
func ReconstructSecret(parts []string) ([]byte, error) {
	if len(parts) < minFragments {
		return nil, domain.ErrInsufficientFragments
	}

	secret, err := base64.StdEncoding.DecodeString(strings.Join(parts, ""))
	if err != nil {
		return nil, fmt.Errorf("decoding fragments: %w", domain.ErrInvalidKeyMaterial)
	}
	return secret, nil
}
