// Package mesh decodes triangle-soup artifacts (binary and text STL) into the
// flat vertex/normal arrays the viewer consumes.
package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	headerSize   = 80
	countSize    = 4
	triangleSize = 50 // 12 normal + 36 vertices + 2 attribute
	// FloatsPerTriangle is the stride of Mesh.Vertices and Mesh.Normals.
	FloatsPerTriangle = 9
)

// ErrTruncated is returned when a binary artifact is shorter than its
// triangle count requires.
var ErrTruncated = errors.New("mesh: truncated binary data")

// Mesh is an immutable triangle soup. Normals holds the facet normal once per
// vertex so both slices have the same length.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
}

// TriangleCount returns len(Vertices)/9.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices) / FloatsPerTriangle
}

// Decode detects the encoding and decodes data.
func Decode(data []byte) (*Mesh, error) {
	if IsText(data) {
		return decodeText(data)
	}
	return decodeBinary(data)
}

// IsText reports whether data is a text STL: it begins with the "solid"
// keyword and its length does not match the binary layout implied by the
// count field. Binary files are allowed to start with "solid" in the header.
func IsText(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return false
	}
	if len(data) < headerSize+countSize {
		return true
	}
	count := binary.LittleEndian.Uint32(data[headerSize:])
	return uint64(len(data)) != binarySize(count)
}

func binarySize(count uint32) uint64 {
	return headerSize + countSize + uint64(count)*triangleSize
}

func decodeBinary(data []byte) (*Mesh, error) {
	if len(data) < headerSize+countSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), headerSize+countSize)
	}
	count := binary.LittleEndian.Uint32(data[headerSize:])
	if uint64(len(data)) < binarySize(count) {
		return nil, fmt.Errorf("%w: %d triangles need %d bytes, have %d", ErrTruncated, count, binarySize(count), len(data))
	}

	m := &Mesh{
		Vertices: make([]float32, 0, int(count)*FloatsPerTriangle),
		Normals:  make([]float32, 0, int(count)*FloatsPerTriangle),
	}
	off := headerSize + countSize
	for i := uint32(0); i < count; i++ {
		var n [3]float32
		for k := range n {
			n[k] = readFloat(data, off+4*k)
		}
		for v := 0; v < 3; v++ {
			base := off + 12 + 12*v
			for k := 0; k < 3; k++ {
				m.Vertices = append(m.Vertices, readFloat(data, base+4*k))
			}
			m.Normals = append(m.Normals, n[0], n[1], n[2])
		}
		off += triangleSize
	}
	return m, nil
}

func readFloat(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}

func decodeText(data []byte) (*Mesh, error) {
	m := &Mesh{}
	var normal [3]float32
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) != 5 || fields[1] != "normal" {
				return nil, fmt.Errorf("mesh: line %d: malformed facet", lineNo)
			}
			v, err := parseTriple(fields[2:])
			if err != nil {
				return nil, fmt.Errorf("mesh: line %d: %w", lineNo, err)
			}
			normal = v
		case "vertex":
			if len(fields) != 4 {
				return nil, fmt.Errorf("mesh: line %d: malformed vertex", lineNo)
			}
			v, err := parseTriple(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("mesh: line %d: %w", lineNo, err)
			}
			m.Vertices = append(m.Vertices, v[0], v[1], v[2])
			m.Normals = append(m.Normals, normal[0], normal[1], normal[2])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	if len(m.Vertices)%FloatsPerTriangle != 0 {
		return nil, fmt.Errorf("mesh: %d vertices do not form whole triangles", len(m.Vertices)/3)
	}
	return m, nil
}

func parseTriple(fields []string) ([3]float32, error) {
	var out [3]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return out, fmt.Errorf("invalid number %q", f)
		}
		out[i] = float32(v)
	}
	return out, nil
}
