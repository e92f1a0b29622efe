package core

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"lukechampine.com/blake3"

	"apk-installer/internal/types"
)

func newHasher(hashType types.HashType) (hash.Hash, error) {
	switch types.HashType(strings.ToLower(string(hashType))) {
	case "", types.HashTypeSHA256:
		return sha256.New(), nil
	case types.HashTypeSHA512:
		return sha512.New(), nil
	case types.HashTypeBLAKE3:
		return blake3.New(32, nil), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unsupported hash type: " + string(hashType))
	}
}

// FileHash returns the lowercase hex digest of path.
func FileHash(path string, hashType types.HashType) (string, error) {
	h, err := newHasher(hashType)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashEqual(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
