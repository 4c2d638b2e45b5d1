package fat

import (
	"encoding/binary"
	"math"

	"github.com/noxer/bytewriter"

	"github.com/jpillora/fatvol/errors"
)

// HeaderSize is the on-disk size, in bytes, of a Header: five little-endian
// uint32 fields.
const HeaderSize = 20

// Header is the first sector of a volume: the geometry constants the
// engine was formatted with, plus a checksum guarding against a stray
// buffer of a different format being mounted.
type Header struct {
	BytesPerSector    uint32
	SectorsPerCluster uint32
	SectorCount       uint32
	FATCount          uint32
	Checksum          uint32
}

// NewHeader builds a Header for a volume of the given capacity, which must
// be a positive multiple of SectorSize.
func NewHeader(capacityBytes uint64) (Header, error) {
	if capacityBytes == 0 || capacityBytes%SectorSize != 0 {
		return Header{}, errors.ErrBadCapacity.WithMessage(
			"capacity must be a positive multiple of the sector size")
	}

	h := Header{
		BytesPerSector:    SectorSize,
		SectorsPerCluster: SectorsPerCluster,
		SectorCount:       uint32(capacityBytes / SectorSize),
		FATCount:          FATCount,
	}
	h.Checksum = checksumOf(h.BytesPerSector, h.SectorsPerCluster, h.SectorCount, h.FATCount)
	return h, nil
}

// checksumOf computes the two's-complement negation of the sum of the
// header's non-checksum fields, so that summing all five encoded fields
// (including the checksum itself) wraps back to zero.
func checksumOf(fields ...uint32) uint32 {
	var sum uint32
	for _, f := range fields {
		sum += f
	}
	return (math.MaxUint32 - sum) + 1
}

// Encode serializes h into its 20-byte on-disk form.
func (h Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	w := bytewriter.New(buf[:])
	binary.Write(w, binary.LittleEndian, h.BytesPerSector)
	binary.Write(w, binary.LittleEndian, h.SectorsPerCluster)
	binary.Write(w, binary.LittleEndian, h.SectorCount)
	binary.Write(w, binary.LittleEndian, h.FATCount)
	binary.Write(w, binary.LittleEndian, h.Checksum)
	return buf
}

// DecodeHeader parses and validates a 20-byte header sector. It fails with
// errors.ErrBadBytes if data isn't exactly HeaderSize bytes, and with
// errors.ErrBadChecksum if the embedded checksum doesn't match.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) != HeaderSize {
		return Header{}, errors.ErrBadBytes.WithMessage("header sector must be 20 bytes")
	}

	var h Header
	h.BytesPerSector = binary.LittleEndian.Uint32(data[0:4])
	h.SectorsPerCluster = binary.LittleEndian.Uint32(data[4:8])
	h.SectorCount = binary.LittleEndian.Uint32(data[8:12])
	h.FATCount = binary.LittleEndian.Uint32(data[12:16])
	h.Checksum = binary.LittleEndian.Uint32(data[16:20])

	var sum uint32
	sum += h.BytesPerSector + h.SectorsPerCluster + h.SectorCount + h.FATCount + h.Checksum
	if sum != 0 {
		return Header{}, errors.ErrBadChecksum.WithMessage("header checksum mismatch")
	}

	return h, nil
}
