package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Notification signature errors.
var (
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrSignatureMismatch  = errors.New("signature mismatch")
	ErrSignatureExpired   = errors.New("signature timestamp outside tolerance")
)

// signatureVersion tags the HMAC-SHA256 scheme in the header.
const signatureVersion = "v1"

// HMACSignatureService implements ports.SignatureService. Headers have the
// form "t=<unix seconds>,v1=<hex hmac>" where the MAC covers "<t>.<body>".
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMACSignatureService.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the signature header for body sent at ts.
func (s *HMACSignatureService) Sign(secret string, ts time.Time, body []byte) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,%s=%s", unix, signatureVersion, hex.EncodeToString(mac(secret, unix, body)))
}

// Verify checks header against body. Timestamps further than tolerance from
// now are rejected; a zero tolerance disables the check.
func (s *HMACSignatureService) Verify(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	unix, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		skew := now.Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrSignatureExpired
		}
	}

	expected := mac(secret, unix, body)
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func mac(secret string, unix int64, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(unix, 10)))
	h.Write([]byte{'.'})
	h.Write(body)
	return h.Sum(nil)
}

// parseSignatureHeader accepts several v1 entries so secrets can be rotated.
func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var (
		unix   int64
		haveTS bool
		sigs   [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrMalformedSignature
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			unix, haveTS = ts, true
		case signatureVersion:
			sig, err := hex.DecodeString(value)
			if err != nil {
				return 0, nil, ErrMalformedSignature
			}
			sigs = append(sigs, sig)
		}
	}
	if !haveTS || len(sigs) == 0 {
		return 0, nil, ErrMalformedSignature
	}
	return unix, sigs, nil
}
