package radiance

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/encoding/protowire"
)

// Compression selects the codec for the sample body.
type Compression int

const (
	// Zlib is slower and smaller.  It is the default.
	Zlib Compression = iota
	// Snappy is for frequent checkpoints of large images.
	Snappy
)

func (c Compression) String() string {
	switch c {
	case Zlib:
		return "zlib"
	case Snappy:
		return "snappy"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

func ParseCompression(s string) (Compression, error) {
	switch s {
	case "zlib", "":
		return Zlib, nil
	case "snappy":
		return Snappy, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

const dataLayoutVersion = 1

// Header field numbers.
const (
	fieldWidth       protowire.Number = 1
	fieldHeight      protowire.Number = 2
	fieldVersion     protowire.Number = 3
	fieldCompression protowire.Number = 4
	fieldBounces     protowire.Number = 5
)

// Compression values on the wire.  Zero is unset and read as zlib.
const (
	wireZlib   = 1
	wireSnappy = 2
)

type header struct {
	width, height int
	version       int
	compression   Compression
	bounces       int
}

func (h *header) marshal() []byte {
	wire := uint64(wireZlib)
	if h.compression == Snappy {
		wire = wireSnappy
	}

	var b []byte
	b = protowire.AppendTag(b, fieldWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.width))
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.height))
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.version))
	b = protowire.AppendTag(b, fieldCompression, protowire.VarintType)
	b = protowire.AppendVarint(b, wire)
	b = protowire.AppendTag(b, fieldBounces, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.bounces))
	return b
}

func (h *header) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("while reading field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			// Skip fields from newer writers.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("while skipping field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return fmt.Errorf("while reading field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldWidth:
			h.width = int(v)
		case fieldHeight:
			h.height = int(v)
		case fieldVersion:
			h.version = int(v)
		case fieldCompression:
			switch v {
			case 0, wireZlib:
				h.compression = Zlib
			case wireSnappy:
				h.compression = Snappy
			default:
				return fmt.Errorf("unknown compression %d", v)
			}
		case fieldBounces:
			h.bounces = int(v)
		}
	}
	return nil
}

// Largest header and image we are willing to allocate for.
const (
	maxHeaderLength = 1 << 16
	maxPixels       = 1 << 26
)

func Read(in io.Reader) (*Image, error) {
	// Read header length.
	var headerLength uint64
	if err := binary.Read(in, binary.LittleEndian, &headerLength); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLength > maxHeaderLength {
		return nil, fmt.Errorf("header length %d is implausibly large", headerLength)
	}

	headerBytes := make([]byte, int(headerLength))
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header bytes: %w", err)
	}

	hdr := &header{}
	if err := hdr.unmarshal(headerBytes); err != nil {
		return nil, fmt.Errorf("while unmarshaling header: %w", err)
	}

	if hdr.version != dataLayoutVersion {
		return nil, fmt.Errorf("bad data layout version: %v", hdr.version)
	}

	if hdr.width <= 0 || hdr.height <= 0 || hdr.width > maxPixels/hdr.height {
		return nil, fmt.Errorf("image dimensions %dx%d are out of range", hdr.width, hdr.height)
	}

	im := &Image{Bounces: hdr.bounces}
	im.Resize(hdr.width, hdr.height)

	var body io.Reader
	switch hdr.compression {
	case Snappy:
		body = snappy.NewReader(in)
	default:
		zipReader, err := zlib.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("while opening zip reader: %w", err)
		}
		defer zipReader.Close()
		body = zipReader
	}

	if err := binary.Read(body, binary.LittleEndian, im.Sums); err != nil {
		return nil, fmt.Errorf("while reading radiance sums: %w", err)
	}

	if err := binary.Read(body, binary.LittleEndian, im.Counts); err != nil {
		return nil, fmt.Errorf("while reading sample counts: %w", err)
	}

	return im, nil
}

func ReadFile(name string) (*Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

type compressor interface {
	io.Writer
	Close() error
}

func Write(im *Image, w io.Writer, c Compression) error {
	hdr := &header{
		width:       im.Width,
		height:      im.Height,
		version:     dataLayoutVersion,
		compression: c,
		bounces:     im.Bounces,
	}
	hdrBytes := hdr.marshal()

	headerLengthBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(headerLengthBytes, uint64(len(hdrBytes)))
	if _, err := w.Write(headerLengthBytes); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(hdrBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	var zipWriter compressor
	switch c {
	case Snappy:
		zipWriter = snappy.NewBufferedWriter(w)
	default:
		zipWriter = zlib.NewWriter(w)
	}

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Sums); err != nil {
		return fmt.Errorf("while writing radiance sums: %w", err)
	}

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Counts); err != nil {
		return fmt.Errorf("while writing sample counts: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("while closing %v writer: %w", c, err)
	}

	return nil
}

// WriteFile replaces name with im.  The file is written beside its final
// location and renamed into place, so an interrupted write never clobbers an
// earlier checkpoint.
func WriteFile(name string, im *Image, c Compression) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".tmp*")
	if err != nil {
		return fmt.Errorf("while creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(im, tmp, c); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("while closing temporary file: %w", err)
	}

	if err := os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("while renaming into place: %w", err)
	}
	return nil
}
