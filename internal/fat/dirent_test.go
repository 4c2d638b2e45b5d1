package fat_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpillora/fatvol/errors"
	"github.com/jpillora/fatvol/internal/fat"
)

func TestDirEntry_EncodeDecodeRoundTrips(t *testing.T) {
	entry := fat.DirEntry{
		Name:    "greeting",
		Size:    5,
		Cluster: 3,
		Flags:   fat.FlagOccupied,
	}

	encoded := entry.Encode()
	decoded := fat.DecodeDirEntry(encoded[:])
	assert.Equal(t, entry, decoded)
}

func TestDirEntry_SetNameAcceptsTwelveBytes(t *testing.T) {
	var entry fat.DirEntry
	require.NoError(t, entry.SetName(strings.Repeat("a", 12)))
	assert.Equal(t, strings.Repeat("a", 12), entry.Name)
}

func TestDirEntry_SetNameRejectsThirteenBytes(t *testing.T) {
	var entry fat.DirEntry
	err := entry.SetName(strings.Repeat("a", 13))
	assert.ErrorIs(t, err, errors.ErrFilenameTooLong)
}

func TestDirEntry_DecodeStripsNulPadding(t *testing.T) {
	var raw [fat.DirEntrySize]byte
	copy(raw[0:12], "f")

	decoded := fat.DecodeDirEntry(raw[:])
	assert.Equal(t, "f", decoded.Name)
}

func TestDirEntry_FreeSlotHasEmptyNameAndNoOccupiedFlag(t *testing.T) {
	var entry fat.DirEntry
	assert.True(t, entry.IsFree())

	entry.Flags = fat.FlagOccupied
	assert.False(t, entry.IsFree())
}

func TestEntryFlags_HasChecksAllBits(t *testing.T) {
	flags := fat.FlagOccupied | fat.FlagDirectory | fat.FlagSystem
	assert.True(t, flags.Has(fat.FlagOccupied|fat.FlagDirectory))
	assert.False(t, flags.Has(fat.FlagOccupied|fat.FlagSystem|fat.EntryFlags(1<<31)))
}
