package fat

import (
	"encoding/binary"
	"fmt"

	"github.com/boljen/go-bitmap"

	"github.com/jpillora/fatvol/errors"
)

// FATCache batches edits to FAT #1 entries across a single operation (an
// allocation, a free, or a bug injection). Sectors are loaded lazily and
// only the ones actually touched are marked dirty; Flush writes those back
// in one pass. A cache that is simply discarded without calling Flush
// leaves the on-disk FAT untouched, which is how allocate_chain aborts
// cleanly when space runs out partway through.
type FATCache struct {
	device  *BlockDevice
	layout  Layout
	loaded  bitmap.Bitmap
	dirty   bitmap.Bitmap
	sectors [][EntriesPerFATSector]uint32
}

// NewFATCache creates an empty cache over device's first FAT copy, sized
// for layout.
func NewFATCache(device *BlockDevice, layout Layout) *FATCache {
	n := int(layout.FATSectorsPerFAT)
	return &FATCache{
		device:  device,
		layout:  layout,
		loaded:  bitmap.NewSlice(n),
		dirty:   bitmap.NewSlice(n),
		sectors: make([][EntriesPerFATSector]uint32, n),
	}
}

func (c *FATCache) loadSector(idx uint32) error {
	if c.loaded.Get(int(idx)) {
		return nil
	}

	raw, err := c.device.ReadSector(1 + idx)
	if err != nil {
		return err
	}

	var entries [EntriesPerFATSector]uint32
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(raw[i*FATEntrySize : (i+1)*FATEntrySize])
	}

	c.sectors[idx] = entries
	c.loaded.Set(int(idx), true)
	return nil
}

// Get returns the FAT entry for cluster c.
func (c *FATCache) Get(cluster uint32) (uint32, error) {
	idx := FATSectorOf(cluster)
	if idx >= c.layout.FATSectorsPerFAT {
		return 0, errors.ErrCannotRead.WithMessage(
			fmt.Sprintf("cluster %d has no FAT entry on this volume", cluster))
	}
	if err := c.loadSector(idx); err != nil {
		return 0, err
	}
	return c.sectors[idx][cluster%EntriesPerFATSector], nil
}

// Set assigns the FAT entry for cluster c and marks its sector dirty.
func (c *FATCache) Set(cluster uint32, value uint32) error {
	idx := FATSectorOf(cluster)
	if idx >= c.layout.FATSectorsPerFAT {
		return errors.ErrCannotWrite.WithMessage(
			fmt.Sprintf("cluster %d has no FAT entry on this volume", cluster))
	}
	if err := c.loadSector(idx); err != nil {
		return err
	}

	c.sectors[idx][cluster%EntriesPerFATSector] = value
	c.dirty.Set(int(idx), true)
	return nil
}

// Flush writes every dirty sector back to FAT #1 and marks the cache clean.
// FAT #2 is never touched here; it is only ever written during Format.
func (c *FATCache) Flush() error {
	for idx := uint32(0); idx < c.layout.FATSectorsPerFAT; idx++ {
		if !c.dirty.Get(int(idx)) {
			continue
		}

		var raw [SectorSize]byte
		for i, entry := range c.sectors[idx] {
			binary.LittleEndian.PutUint32(raw[i*FATEntrySize:(i+1)*FATEntrySize], entry)
		}

		if err := c.device.WriteSector(1+idx, raw[:]); err != nil {
			return err
		}
		c.dirty.Set(int(idx), false)
	}
	return nil
}
