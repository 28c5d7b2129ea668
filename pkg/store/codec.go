package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/abworrall/longexpo/pkg/emath"
)

// The element type codes follow OpenCV: the depth in the low 3 bits,
// channels-1 above them.
const (
	Depth8U  = 0
	Depth32F = 5
	Depth64F = 6

	Type8UC1  = Depth8U
	Type32FC1 = Depth32F
	Type32FC2 = Depth32F + 8
	Type64FC1 = Depth64F
	Type64FC2 = Depth64F + 8
)

func TypeCode(depth, channels int) int32 { return int32(depth + (channels-1)*8) }
func depthOf(typ int32) int              { return int(typ & 7) }
func channelsOf(typ int32) int           { return int(typ>>3) + 1 }

func depthSize(depth int) int {
	switch depth {
	case Depth8U:
		return 1
	case Depth32F:
		return 4
	case Depth64F:
		return 8
	}
	return 0
}

// Encode writes a raster as a fixed header of three big-endian int32s
// (rows, cols, type code) followed by the elements, row major with the
// channels interleaved, as little-endian float32. There is no
// compression and no version beyond the type code.
func Encode(w io.Writer, r emath.Raster) error {
	rows, cols, nc := r.Dy(), r.Dx(), r.NumChannels()
	if nc < 1 || nc > 4 {
		return fmt.Errorf("encode: %w: %d channels", emath.ErrInput, nc)
	}

	hdr := []int32{int32(rows), int32(cols), TypeCode(Depth32F, nc)}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return fmt.Errorf("encode header: %w: %v", emath.ErrResource, err)
	}

	body := make([]byte, rows*cols*nc*4)
	off := 0
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for c := 0; c < nc; c++ {
				binary.LittleEndian.PutUint32(body[off:], math.Float32bits(float32(r.Planes[c].Get(x, y))))
				off += 4
			}
		}
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("encode body: %w: %v", emath.ErrResource, err)
	}
	return nil
}

// Decode reads what Encode writes. It also accepts 64 bit floats, and
// 8 bit values (scaled into [0,1]). The body must be exactly as long as
// the header says.
func Decode(rd io.Reader) (emath.Raster, error) {
	var hdr [3]int32
	if err := binary.Read(rd, binary.BigEndian, &hdr); err != nil {
		return emath.Raster{}, fmt.Errorf("decode header: %w: %v", emath.ErrResource, err)
	}
	rows, cols, typ := int(hdr[0]), int(hdr[1]), hdr[2]
	depth, nc := depthOf(typ), channelsOf(typ)
	esize := depthSize(depth)
	if rows < 0 || cols < 0 || esize == 0 || nc < 1 || nc > 4 {
		return emath.Raster{}, fmt.Errorf("decode: %w: bad header rows=%d cols=%d type=%d", emath.ErrResource, rows, cols, typ)
	}

	body, err := io.ReadAll(rd)
	if err != nil {
		return emath.Raster{}, fmt.Errorf("decode body: %w: %v", emath.ErrResource, err)
	}
	if want := rows * cols * nc * esize; len(body) != want {
		return emath.Raster{}, fmt.Errorf("decode: %w: %dx%d type %d needs %d bytes of %d-byte elements, body has %d",
			emath.ErrResource, cols, rows, typ, want, esize*nc, len(body))
	}

	r := emath.NewRaster(cols, rows, nc)
	off := 0
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for c := 0; c < nc; c++ {
				var v float64
				switch depth {
				case Depth8U:
					v = float64(body[off]) / 255.0
				case Depth32F:
					v = float64(math.Float32frombits(binary.LittleEndian.Uint32(body[off:])))
				case Depth64F:
					v = math.Float64frombits(binary.LittleEndian.Uint64(body[off:]))
				}
				r.Planes[c].Set(x, y, v)
				off += esize
			}
		}
	}
	return r, nil
}

func EncodeBytes(r emath.Raster) ([]byte, error) {
	var buf bytes.Buffer
	err := Encode(&buf, r)
	return buf.Bytes(), err
}

func DecodeBytes(b []byte) (emath.Raster, error) {
	return Decode(bytes.NewReader(b))
}
