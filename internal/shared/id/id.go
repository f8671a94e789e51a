// Package id generates request identifiers.
//
// Request IDs are prefixed ULIDs (req_01J...): sortable by creation time and
// easy to spot in logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestID identifies one inbound request
type RequestID string

// RequestPrefix marks request IDs
const RequestPrefix = "req"

// maxForeignLength bounds request IDs accepted from callers.
const maxForeignLength = 128

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id RequestID) String() string { return string(id) }

// Timestamp extracts the creation time of a generated request ID.
func (id RequestID) Timestamp() (time.Time, error) {
	parsed, err := ulid.Parse(strings.TrimPrefix(string(id), RequestPrefix+"_"))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// AcceptRequestID reports whether a caller-supplied request ID may be
// propagated: one of our own IDs, a bare ULID or a UUID from an edge proxy.
func AcceptRequestID(s string) bool {
	if s == "" || len(s) > maxForeignLength {
		return false
	}
	if _, err := ulid.Parse(strings.TrimPrefix(s, RequestPrefix+"_")); err == nil {
		return true
	}
	_, err := uuid.Parse(s)
	return err == nil
}
