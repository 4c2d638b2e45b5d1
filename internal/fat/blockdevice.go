package fat

import (
	"fmt"
	"io"

	"github.com/jpillora/fatvol/errors"
)

// BlockDevice is the raw sector/cluster I/O layer over a backing stream. It
// knows nothing about FAT chains or directory structure; it only enforces
// that reads and writes stay within the volume and are correctly sized,
// seeking to the right offset before each access the way the teacher's
// block cache does for its own backing streams.
type BlockDevice struct {
	stream      io.ReadWriteSeeker
	sectorCount uint32
}

// NewBlockDevice wraps stream, which backs a volume of sectorCount sectors.
func NewBlockDevice(stream io.ReadWriteSeeker, sectorCount uint32) *BlockDevice {
	return &BlockDevice{stream: stream, sectorCount: sectorCount}
}

// SectorCount returns the total number of sectors this device exposes.
func (d *BlockDevice) SectorCount() uint32 {
	return d.sectorCount
}

func (d *BlockDevice) seekToSector(n uint32) error {
	if n >= d.sectorCount {
		return errors.ErrCannotRead.WithMessage(
			fmt.Sprintf("sector %d is past the end of the volume (%d sectors)", n, d.sectorCount))
	}
	_, err := d.stream.Seek(int64(n)*SectorSize, io.SeekStart)
	return err
}

// ReadSector reads one SectorSize-byte sector at absolute sector index n.
func (d *BlockDevice) ReadSector(n uint32) ([]byte, error) {
	if err := d.seekToSector(n); err != nil {
		return nil, err
	}

	buf := make([]byte, SectorSize)
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return nil, errors.ErrCannotRead.WrapError(err)
	}
	return buf, nil
}

// WriteSector writes exactly one SectorSize-byte sector at absolute sector
// index n.
func (d *BlockDevice) WriteSector(n uint32, data []byte) error {
	if len(data) != SectorSize {
		return errors.ErrCannotWrite.WithMessage(
			fmt.Sprintf("sector write must be exactly %d bytes, got %d", SectorSize, len(data)))
	}
	if err := d.seekToSector(n); err != nil {
		return errors.ErrCannotWrite.WrapError(err)
	}

	if _, err := d.stream.Write(data); err != nil {
		return errors.ErrCannotWrite.WrapError(err)
	}
	return nil
}

// ReadCluster reads the ClusterSize bytes of data cluster c, addressed
// relative to layout's data region.
func (d *BlockDevice) ReadCluster(layout Layout, c uint32) ([]byte, error) {
	if !layout.IsValidCluster(c) {
		return nil, errors.ErrCannotRead.WithMessage(
			fmt.Sprintf("cluster %d is out of range [1, %d]", c, layout.ClusterCount))
	}

	buf := make([]byte, 0, ClusterSize)
	start := layout.ClusterToSector(c)
	for s := start; s < start+SectorsPerCluster; s++ {
		sector, err := d.ReadSector(s)
		if err != nil {
			return nil, err
		}
		buf = append(buf, sector...)
	}
	return buf, nil
}

// WriteCluster writes exactly ClusterSize bytes to data cluster c.
func (d *BlockDevice) WriteCluster(layout Layout, c uint32, data []byte) error {
	if !layout.IsValidCluster(c) {
		return errors.ErrCannotWrite.WithMessage(
			fmt.Sprintf("cluster %d is out of range [1, %d]", c, layout.ClusterCount))
	}
	if len(data) != ClusterSize {
		return errors.ErrCannotWrite.WithMessage(
			fmt.Sprintf("cluster write must be exactly %d bytes, got %d", ClusterSize, len(data)))
	}

	start := layout.ClusterToSector(c)
	for i := 0; i < SectorsPerCluster; i++ {
		sector := data[i*SectorSize : (i+1)*SectorSize]
		if err := d.WriteSector(start+uint32(i), sector); err != nil {
			return err
		}
	}
	return nil
}
