package fat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/jpillora/fatvol/internal/fat"
)

func newTestLayout(t *testing.T, sectorCount uint32) (*fat.BlockDevice, fat.Layout) {
	t.Helper()
	storage := make([]byte, int(sectorCount)*fat.SectorSize)
	stream := bytesextra.NewReadWriteSeeker(storage)
	device := fat.NewBlockDevice(stream, sectorCount)
	layout := fat.ResolveLayout(sectorCount)
	return device, layout
}

func TestFATCache_GetDefaultsToFree(t *testing.T) {
	device, layout := newTestLayout(t, 256)
	cache := fat.NewFATCache(device, layout)

	val, err := cache.Get(5)
	require.NoError(t, err)
	assert.EqualValues(t, fat.FATFree, val)
}

func TestFATCache_SetThenFlushPersists(t *testing.T) {
	device, layout := newTestLayout(t, 256)
	cache := fat.NewFATCache(device, layout)

	require.NoError(t, cache.Set(3, fat.FATEnd))
	require.NoError(t, cache.Flush())

	reopened := fat.NewFATCache(device, layout)
	val, err := reopened.Get(3)
	require.NoError(t, err)
	assert.EqualValues(t, fat.FATEnd, val)
}

func TestFATCache_DiscardedWithoutFlushLeavesDiskUntouched(t *testing.T) {
	device, layout := newTestLayout(t, 256)
	cache := fat.NewFATCache(device, layout)
	require.NoError(t, cache.Set(7, fat.FATEnd))
	// No Flush call: the edit must not be observable from a fresh cache.

	reopened := fat.NewFATCache(device, layout)
	val, err := reopened.Get(7)
	require.NoError(t, err)
	assert.EqualValues(t, fat.FATFree, val)
}

func TestFATCache_OutOfRangeClusterFails(t *testing.T) {
	device, layout := newTestLayout(t, 256)
	cache := fat.NewFATCache(device, layout)

	_, err := cache.Get(layout.FATSectorsPerFAT * fat.EntriesPerFATSector)
	assert.Error(t, err)
}
