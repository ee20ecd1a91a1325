package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
)

const (
	codeAlphabet      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLength = 7
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// CodeGenerator produces collision-resistant short codes from a secure random
// source. It does not guarantee uniqueness; the caller retries on a
// uniqueness violation with a bounded attempt count.
type CodeGenerator struct {
	random io.Reader
	length int
}

// NewCodeGenerator returns a generator drawing from crypto/rand.
func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{random: rand.Reader, length: length}
}

// NewCodeGeneratorWithSource allows substituting the random source in tests.
func NewCodeGeneratorWithSource(random io.Reader, length int) *CodeGenerator {
	g := NewCodeGenerator(length)
	g.random = random
	return g
}

// Generate draws length bytes and maps each into the 62-character alphabet
// via modulo reduction.
func (g *CodeGenerator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// ValidAliasFormat reports whether candidate passes the URL-safe character
// and length check. Collision checking is the registry's job.
func ValidAliasFormat(candidate string) bool {
	return aliasPattern.MatchString(candidate)
}
