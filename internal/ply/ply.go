package ply

// ply.go parses the header of binary PLY splat files and the optional
// camera-metadata block that the splat generator appends after the vertex
// data: 16 float32 extrinsic, 9 float32 row-major intrinsic, 2 uint32
// image width/height. The extrinsic is skipped; renders position the
// camera explicitly.

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Camera holds the render-relevant camera metadata embedded in a PLY file.
// Intrinsics and image size are independently optional: a truncated trailer
// may carry one without the other.
type Camera struct {
	// Intrinsics is the 3x3 camera intrinsic matrix, row-major.
	// Valid only when HasIntrinsics is true.
	Intrinsics [3][3]float64

	// ImageWidth and ImageHeight are the source image resolution.
	// Valid only when HasImageSize is true.
	ImageWidth  int
	ImageHeight int

	HasIntrinsics bool
	HasImageSize  bool
}

// FocalX returns the horizontal focal length in pixels (fx term).
func (c *Camera) FocalX() float64 { return c.Intrinsics[0][0] }

// FocalY returns the vertical focal length in pixels (fy term).
func (c *Camera) FocalY() float64 { return c.Intrinsics[1][1] }

// PrincipalX returns the principal point X in pixels (cx term).
func (c *Camera) PrincipalX() float64 { return c.Intrinsics[0][2] }

// PrincipalY returns the principal point Y in pixels (cy term).
func (c *Camera) PrincipalY() float64 { return c.Intrinsics[1][2] }

// propertySizes maps PLY numeric type tokens to their byte widths.
// Unknown tokens fall back to 4 bytes.
var propertySizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// PropertySize returns the byte width of a PLY numeric type token.
func PropertySize(token string) int {
	if size, ok := propertySizes[token]; ok {
		return size
	}
	return 4
}

// header describes the parts of a PLY header needed to locate the
// camera-metadata trailer.
type header struct {
	byteLen     int64
	vertexCount int64
	vertexSize  int64
}

// parseHeader reads header lines up to and including end_header, returning
// the header byte length, vertex count and per-vertex record size.
func parseHeader(r *bufio.Reader) (*header, error) {
	h := &header{}
	inVertex := false

	for {
		line, err := r.ReadBytes('\n')
		h.byteLen += int64(len(line))
		if len(line) > 0 {
			text := strings.TrimSpace(string(line))
			parts := strings.Fields(text)

			switch {
			case len(parts) >= 2 && parts[0] == "element":
				inVertex = parts[1] == "vertex"
				if inVertex && len(parts) >= 3 {
					count, perr := strconv.ParseInt(parts[2], 10, 64)
					if perr != nil {
						return nil, fmt.Errorf("malformed vertex count %q: %w", parts[2], perr)
					}
					h.vertexCount = count
				}
			case inVertex && len(parts) >= 3 && parts[0] == "property":
				h.vertexSize += int64(PropertySize(parts[1]))
			}

			if strings.Contains(text, "end_header") {
				return h, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("end_header not found")
			}
			return nil, err
		}
	}
}

// ReadCamera extracts the camera metadata trailing the vertex block of a
// PLY file. Returns an error when the file has no parseable trailer; the
// caller is expected to treat that as "no embedded camera" rather than a
// failure.
func ReadCamera(path string) (*Camera, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ply: %w", err)
	}
	defer f.Close()

	h, err := parseHeader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("parse ply header: %w", err)
	}

	// Trailer starts immediately after the vertex block.
	offset := h.byteLen + h.vertexCount*h.vertexSize
	if _, err := f.Seek(offset+16*4, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek past extrinsic block: %w", err)
	}

	cam := &Camera{}

	intrinsicBytes := make([]byte, 9*4)
	if _, err := io.ReadFull(f, intrinsicBytes); err != nil {
		return nil, fmt.Errorf("no intrinsic block: %w", err)
	}
	reader := bytes.NewReader(intrinsicBytes)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var v uint32
			if err := binary.Read(reader, binary.LittleEndian, &v); err != nil {
				return nil, err
			}
			cam.Intrinsics[row][col] = float64(math.Float32frombits(v))
		}
	}
	cam.HasIntrinsics = true

	sizeBytes := make([]byte, 2*4)
	if _, err := io.ReadFull(f, sizeBytes); err == nil {
		cam.ImageWidth = int(binary.LittleEndian.Uint32(sizeBytes[0:4]))
		cam.ImageHeight = int(binary.LittleEndian.Uint32(sizeBytes[4:8]))
		cam.HasImageSize = true
	}

	return cam, nil
}
