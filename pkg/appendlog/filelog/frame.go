package filelog

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/itm/eventstore/pkg/appendlog"
)

// Frames are laid out as [CRC32(4)][Len(4)][Data], little-endian.
// The CRC covers the length field and the data.
const frameHeaderSize = 8

// maxFrameSize bounds the allocation for a frame whose length field is damaged.
const maxFrameSize = 1 << 30

func encodeFrame(data []byte) []byte {
	buf := make([]byte, frameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(data)))
	copy(buf[frameHeaderSize:], data)
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf
}

// readFrame reads the frame starting at off. It returns io.EOF when the file
// does not hold a complete frame at off, which is either the end of the data
// or a write still in progress.
func readFrame(f *os.File, off int64) ([]byte, int64, error) {
	var header [frameHeaderSize]byte
	n, err := f.ReadAt(header[:], off)
	if n < frameHeaderSize {
		if err == nil || err == io.EOF {
			return nil, off, io.EOF
		}
		return nil, off, err
	}

	size := binary.LittleEndian.Uint32(header[4:])
	if size > maxFrameSize {
		return nil, off, errors.Wrapf(appendlog.ErrCorrupt, "frame at offset %d declares %d bytes", off, size)
	}

	data := make([]byte, size)
	n, err = f.ReadAt(data, off+frameHeaderSize)
	if n < int(size) {
		if err == nil || err == io.EOF {
			return nil, off, io.EOF
		}
		return nil, off, err
	}

	crc := crc32.NewIEEE()
	_, _ = crc.Write(header[4:])
	_, _ = crc.Write(data)
	if crc.Sum32() != binary.LittleEndian.Uint32(header[0:]) {
		return nil, off, errors.Wrapf(appendlog.ErrCorrupt, "CRC mismatch at offset %d", off)
	}

	return data, off + frameHeaderSize + int64(size), nil
}

// lastFrame returns the data of the last complete frame in the file at path.
func lastFrame(path string) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	var last []byte
	var found bool
	var offset int64
	for {
		data, next, err := readFrame(file, offset)
		if err != nil {
			if err == io.EOF || errors.Is(err, appendlog.ErrCorrupt) {
				return last, found, nil
			}
			return nil, false, err
		}
		last, found, offset = data, true, next
	}
}
