package signing

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"hash"
	"strings"
)

type Algorithm string

const (
	HMACSHA1   Algorithm = "hmac-sha1"
	HMACSHA256 Algorithm = "hmac-sha256"
	HMACSHA512 Algorithm = "hmac-sha512"
)

type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

var ErrUnknownAlgorithm = errors.New("unknown signature algorithm")

func hashFor(algorithm Algorithm) (func() hash.Hash, error) {
	switch algorithm {
	case HMACSHA1:
		return sha1.New, nil
	case HMACSHA256:
		return sha256.New, nil
	case HMACSHA512:
		return sha512.New, nil
	default:
		return nil, ErrUnknownAlgorithm
	}
}

// Sign computes the keyed hash of message under the given algorithm.
func Sign(algorithm Algorithm, secret, message []byte) ([]byte, error) {
	newHash, err := hashFor(algorithm)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil), nil
}

// Encode renders a raw mac in the encoding the gateway expects. Hex output
// is lowercase; gateways that compare case-insensitively accept it either way.
func Encode(encoding Encoding, mac []byte) string {
	if encoding == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(mac)
	}
	return hex.EncodeToString(mac)
}

// Verify recomputes the signature of message and compares it against the
// gateway-supplied candidate in constant time. The candidate is decoded with
// the encoding the gateway's scheme declares; a decode failure or an unknown
// algorithm verifies as false, never as an error.
func Verify(algorithm Algorithm, encoding Encoding, secret, message []byte, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}

	decoded, err := decodeCandidate(encoding, candidate)
	if err != nil {
		return false
	}

	expected, err := Sign(algorithm, secret, message)
	if err != nil {
		return false
	}

	return hmac.Equal(decoded, expected)
}

func decodeCandidate(encoding Encoding, candidate string) ([]byte, error) {
	if encoding == EncodingBase64 {
		return base64.StdEncoding.DecodeString(candidate)
	}
	return hex.DecodeString(strings.ToLower(candidate))
}
