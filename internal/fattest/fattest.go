// Package fattest provides shared fixtures for exercising the volume engine
// against an in-memory backing store, the way the teacher's own test
// helpers built fixtures around its block cache.
package fattest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/jpillora/fatvol/internal/fat"
)

// NewMemoryStream allocates a zeroed backing store of capacityBytes and
// wraps it as a seekable stream, mirroring how the teacher wraps a raw byte
// slice for its block cache in tests.
func NewMemoryStream(t *testing.T, capacityBytes uint64) ([]byte, *bytesextra.ReadWriteSeeker) {
	t.Helper()
	storage := make([]byte, capacityBytes)
	stream := bytesextra.NewReadWriteSeeker(storage)
	return storage, stream
}

// NewFormattedEngine returns an Engine already formatted at capacityBytes,
// ready for file operations. It fails the test immediately on any error
// since a broken fixture would only produce confusing downstream failures.
func NewFormattedEngine(t *testing.T, capacityBytes uint64) *fat.Engine {
	t.Helper()
	_, stream := NewMemoryStream(t, capacityBytes)

	engine, err := fat.NewEngine(stream, capacityBytes)
	require.NoError(t, err, "constructing engine over fresh backing store")

	require.NoError(t, engine.Format(capacityBytes), "formatting fixture volume")
	return engine
}
