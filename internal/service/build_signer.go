package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

const minSigningKeyLen = 32

// BuildSigner makes an OrderBuild tamper-evident while the client holds it.
// Only lines that came out of AddLine carry a valid signature.
type BuildSigner struct {
	key []byte
}

func NewBuildSigner(key []byte) (*BuildSigner, error) {
	if len(key) < minSigningKeyLen {
		return nil, fmt.Errorf("build signing key must be at least %d bytes", minSigningKeyLen)
	}
	return &BuildSigner{key: append([]byte(nil), key...)}, nil
}

// NewRandomBuildSigner uses a process-local key. Builds signed by it do not
// survive a restart.
func NewRandomBuildSigner() (*BuildSigner, error) {
	key := make([]byte, minSigningKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &BuildSigner{key: key}, nil
}

// Sign returns build with Signature set over its lines.
func (s *BuildSigner) Sign(build domain.OrderBuild) domain.OrderBuild {
	build.Signature = s.signature(build.Lines)
	return build
}

// Verify accepts an empty build unsigned. Any build with lines must carry
// the signature AddLine issued for exactly those lines.
func (s *BuildSigner) Verify(build domain.OrderBuild) error {
	if len(build.Lines) == 0 {
		return nil
	}
	if build.Signature == "" {
		return domain.NewValidationError("signature", "order build is not signed")
	}
	expected := s.signature(build.Lines)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(build.Signature))) {
		return domain.NewValidationError("signature", "order build was modified")
	}
	return nil
}

func (s *BuildSigner) signature(lines []domain.OrderLine) string {
	h := hmac.New(sha256.New, s.key)
	h.Write(canonicalLines(lines))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalLines length-prefixes names so no two line lists encode the same.
func canonicalLines(lines []domain.OrderLine) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		fmt.Fprintf(&buf, "%d:%s|%d|%s\n", len(l.ItemName), l.ItemName, l.Quantity, l.Price.String())
	}
	return buf.Bytes()
}
