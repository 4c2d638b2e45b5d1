package fat_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/jpillora/fatvol/errors"
	"github.com/jpillora/fatvol/internal/fat"
)

func TestFormat_HeaderRoundTrips(t *testing.T) {
	storage := make([]byte, 64*1024)
	stream := bytesextra.NewReadWriteSeeker(storage)

	engine, err := fat.NewEngine(stream, uint64(len(storage)))
	require.NoError(t, err)
	require.NoError(t, engine.Format(uint64(len(storage))))

	header, err := fat.DecodeHeader(storage[:fat.HeaderSize])
	require.NoError(t, err)
	assert.EqualValues(t, fat.SectorSize, header.BytesPerSector)
	assert.EqualValues(t, fat.SectorsPerCluster, header.SectorsPerCluster)
	assert.EqualValues(t, fat.FATCount, header.FATCount)
	assert.EqualValues(t, len(storage)/fat.SectorSize, header.SectorCount)
}

func TestFormat_RootDirectoryListsDotAndDotDot(t *testing.T) {
	storage := make([]byte, 64*1024)
	stream := bytesextra.NewReadWriteSeeker(storage)

	engine, err := fat.NewEngine(stream, uint64(len(storage)))
	require.NoError(t, err)
	require.NoError(t, engine.Format(uint64(len(storage))))

	entries, err := engine.Listing("/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Contains(t, names, ".")
	assert.Contains(t, names, "..")
}

func TestFormat_RejectsNonMultipleOf512(t *testing.T) {
	storage := make([]byte, 1000)
	stream := bytesextra.NewReadWriteSeeker(storage)

	engine, err := fat.NewEngine(stream, uint64(len(storage)))
	require.NoError(t, err)

	err = engine.Format(999)
	assert.ErrorIs(t, err, errors.ErrBadCapacity)
}

func TestFormat_IsIdempotent(t *testing.T) {
	storage := make([]byte, 64*1024)
	stream := bytesextra.NewReadWriteSeeker(storage)

	engine, err := fat.NewEngine(stream, uint64(len(storage)))
	require.NoError(t, err)
	require.NoError(t, engine.Format(uint64(len(storage))))
	require.NoError(t, engine.NewFile("/greeting", 10))

	require.NoError(t, engine.Format(uint64(len(storage))))

	entries, err := engine.Listing("/")
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "greeting", e.Name, "reformatting must wipe prior contents")
	}
}

func TestFormat_ResizesTruncatableBackingStore(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "volume-*.img")
	require.NoError(t, err)
	defer tmp.Close()

	engine, err := fat.NewEngine(tmp, 64*1024)
	require.NoError(t, err)
	require.NoError(t, engine.Format(64*1024))

	require.NoError(t, engine.Format(128*1024))

	info, err := tmp.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 128*1024, info.Size())
}
