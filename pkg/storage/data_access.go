package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

const (
	HEADER_SLOTS   = 8
	fileMagic      = "FISO"
	fileVersion    = uint32(1)
	minSegmentSize = 1 << 10
)

// DataAccess is a growable little endian byte region with HEADER_SLOTS int32 header slots.
// Header slots are addressed by byte offset: 0, 4, ..., 28.
//
// On disk:
//
//	magic[4] version:u32 header:8*i32 payloadLen:u64 crc32(payload):u32 payload
type DataAccess struct {
	name   string
	path   string // empty for in memory regions
	header [HEADER_SLOTS]int32
	data   []byte
	closed bool

	// in memory regions keep their last flushed state here.
	flushed       []byte
	flushedHeader [HEADER_SLOTS]int32
	hasFlushed    bool
}

func newDataAccess(name, path string) *DataAccess {
	return &DataAccess{name: name, path: path}
}

func (da *DataAccess) GetName() string {
	return da.name
}

// Create allocates an empty region of at least bytes.
func (da *DataAccess) Create(bytes int64) *DataAccess {
	if bytes < minSegmentSize {
		bytes = minSegmentSize
	}
	da.data = make([]byte, bytes)
	da.header = [HEADER_SLOTS]int32{}
	da.closed = false
	return da
}

// EnsureCapacity grows the region to hold at least bytes. It reports whether it had to grow.
func (da *DataAccess) EnsureCapacity(bytes int64) bool {
	if bytes <= int64(len(da.data)) {
		return false
	}
	newCap := int64(len(da.data))
	if newCap < minSegmentSize {
		newCap = minSegmentSize
	}
	for newCap < bytes {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, da.data)
	da.data = grown
	return true
}

func (da *DataAccess) GetCapacity() int64 {
	return int64(len(da.data))
}

func (da *DataAccess) SetInt(bytePos int64, v int32) {
	binary.LittleEndian.PutUint32(da.data[bytePos:bytePos+4], uint32(v))
}

func (da *DataAccess) GetInt(bytePos int64) int32 {
	return int32(binary.LittleEndian.Uint32(da.data[bytePos : bytePos+4]))
}

func (da *DataAccess) SetLong(bytePos int64, v int64) {
	binary.LittleEndian.PutUint64(da.data[bytePos:bytePos+8], uint64(v))
}

func (da *DataAccess) GetLong(bytePos int64) int64 {
	return int64(binary.LittleEndian.Uint64(da.data[bytePos : bytePos+8]))
}

func (da *DataAccess) SetBytes(bytePos int64, b []byte) {
	copy(da.data[bytePos:bytePos+int64(len(b))], b)
}

func (da *DataAccess) GetBytes(bytePos int64, n int) []byte {
	b := make([]byte, n)
	copy(b, da.data[bytePos:bytePos+int64(n)])
	return b
}

func (da *DataAccess) GetByte(bytePos int64) byte {
	return da.data[bytePos]
}

func (da *DataAccess) SetHeader(bytePos int, v int32) {
	util.AssertPanic(bytePos%4 == 0 && bytePos/4 < HEADER_SLOTS, "invalid header position")
	da.header[bytePos/4] = v
}

func (da *DataAccess) GetHeader(bytePos int) int32 {
	util.AssertPanic(bytePos%4 == 0 && bytePos/4 < HEADER_SLOTS, "invalid header position")
	return da.header[bytePos/4]
}

// Flush persists the region. Files are written to a temporary file first and then renamed.
func (da *DataAccess) Flush() error {
	if da.closed {
		return util.WrapErrorf(nil, util.ErrInternalServerError, "flush of closed storage %s", da.name)
	}
	if da.path == "" {
		da.flushed = make([]byte, len(da.data))
		copy(da.flushed, da.data)
		da.flushedHeader = da.header
		da.hasFlushed = true
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(da.path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(da.path), filepath.Base(da.path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := da.writeTo(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, da.path)
}

func (da *DataAccess) writeTo(w io.Writer) error {
	if _, err := w.Write([]byte(fileMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, fileVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, da.header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(da.data))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, crc32.ChecksumIEEE(da.data)); err != nil {
		return err
	}
	_, err := w.Write(da.data)
	return err
}

// LoadExisting reads a previously flushed region. It returns false without error if there is
// nothing to load.
func (da *DataAccess) LoadExisting() (bool, error) {
	if da.path == "" {
		if !da.hasFlushed {
			return false, nil
		}
		da.data = make([]byte, len(da.flushed))
		copy(da.data, da.flushed)
		da.header = da.flushedHeader
		da.closed = false
		return true, nil
	}

	f, err := os.Open(da.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "%s: bad magic", da.path)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != fileVersion {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"%s: unsupported version %d", da.path, version)
	}
	var header [HEADER_SLOTS]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "%s: truncated header", da.path)
	}
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "%s: truncated header", da.path)
	}
	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "%s: truncated header", da.path)
	}
	if stat, err := f.Stat(); err == nil && uint64(stat.Size()) < length {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"%s: payload length %d exceeds file size", da.path, length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "%s: truncated payload", da.path)
	}
	if crc32.ChecksumIEEE(data) != checksum {
		return false, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "%s: checksum mismatch", da.path)
	}

	da.header = header
	da.data = data
	da.closed = false
	return true, nil
}

func (da *DataAccess) Close() error {
	da.closed = true
	da.data = nil
	return nil
}

func (da *DataAccess) IsClosed() bool {
	return da.closed
}
