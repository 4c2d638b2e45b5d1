package fat

import (
	"encoding/binary"

	"github.com/jpillora/fatvol/errors"
)

// Format lays a fresh volume of capacityBytes out over the engine's backing
// stream: writes the header sector, zeroes the FAT and data regions, seeds
// both FAT copies with cluster 0 marked BAD and cluster 1 (root) marked
// END-OF-CHAIN, and initializes the root directory with "." and "..".
//
// If the backing stream supports Truncate (e.g. *os.File), it is resized to
// capacityBytes first. A backing store without Truncate keeps its size: a
// smaller capacityBytes formats only its leading bytes, and a larger one
// succeeds only if the store accepts writes past its end (a failed write
// surfaces as errors.ErrCannotCreateFile wrapping the write error).
func (e *Engine) Format(capacityBytes uint64) error {
	if t, ok := e.stream.(Truncator); ok {
		if err := t.Truncate(int64(capacityBytes)); err != nil {
			return errors.ErrCannotCreateFile.WrapError(err)
		}
	}

	header, err := NewHeader(capacityBytes)
	if err != nil {
		return err
	}

	layout := ResolveLayout(header.SectorCount)
	if err := checkClusterCount(layout); err != nil {
		return err
	}

	device := NewBlockDevice(e.stream, header.SectorCount)

	encodedHeader := header.Encode()
	var headerSector [SectorSize]byte
	copy(headerSector[:], encodedHeader[:])
	if err := device.WriteSector(0, headerSector[:]); err != nil {
		return errors.ErrCannotCreateFile.WrapError(err)
	}

	var zeroSector [SectorSize]byte
	for s := uint32(1); s < header.SectorCount; s++ {
		if err := device.WriteSector(s, zeroSector[:]); err != nil {
			return errors.ErrCannotCreateFile.WrapError(err)
		}
	}

	if err := writeFATSeed(device, layout); err != nil {
		return errors.ErrCannotCreateFile.WrapError(err)
	}

	var rootEntries [DirEntriesPerCluster]DirEntry
	rootEntries[0] = DirEntry{Name: ".", Cluster: RootCluster, Flags: FlagOccupied | FlagDirectory | FlagSystem}
	rootEntries[1] = DirEntry{Name: "..", Cluster: RootCluster, Flags: FlagOccupied | FlagDirectory | FlagSystem}

	var rootCluster [ClusterSize]byte
	for i, entry := range rootEntries {
		encoded := entry.Encode()
		copy(rootCluster[i*DirEntrySize:(i+1)*DirEntrySize], encoded[:])
	}
	if err := device.WriteCluster(layout, RootCluster, rootCluster[:]); err != nil {
		return errors.ErrCannotCreateFile.WrapError(err)
	}

	e.device = device
	e.header = header
	e.layout = layout
	e.formatted = true
	return nil
}

// writeFATSeed marks cluster 0 BAD and cluster 1 (root) END-OF-CHAIN in both
// FAT copies; this is the one place FAT #2 is ever written, since every
// later data operation keeps only FAT #1 current.
func writeFATSeed(device *BlockDevice, layout Layout) error {
	var seedSector [SectorSize]byte
	binary.LittleEndian.PutUint32(seedSector[0:4], FATBad)
	binary.LittleEndian.PutUint32(seedSector[4:8], FATEnd)

	var zeroSector [SectorSize]byte

	for copyIdx := uint32(0); copyIdx < FATCount; copyIdx++ {
		base := 1 + copyIdx*layout.FATSectorsPerFAT
		if err := device.WriteSector(base, seedSector[:]); err != nil {
			return err
		}
		for s := uint32(1); s < layout.FATSectorsPerFAT; s++ {
			if err := device.WriteSector(base+s, zeroSector[:]); err != nil {
				return err
			}
		}
	}
	return nil
}
