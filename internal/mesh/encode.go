package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Encode writes m in the binary layout Decode reads. The normal of each
// triangle is taken from its first vertex.
func Encode(m *Mesh) []byte {
	count := m.TriangleCount()
	buf := make([]byte, headerSize+countSize+count*triangleSize)
	copy(buf, "scadlive binary mesh")
	binary.LittleEndian.PutUint32(buf[headerSize:], uint32(count))
	off := headerSize + countSize
	for t := 0; t < count; t++ {
		base := t * FloatsPerTriangle
		for k := 0; k < 3; k++ {
			putFloat(buf, off+4*k, m.Normals[base+k])
		}
		for k := 0; k < FloatsPerTriangle; k++ {
			putFloat(buf, off+12+4*k, m.Vertices[base+k])
		}
		off += triangleSize
	}
	return buf
}

// EncodeText writes m as a text STL.
func EncodeText(m *Mesh, name string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "solid %s\n", name)
	for t := 0; t < m.TriangleCount(); t++ {
		base := t * FloatsPerTriangle
		n := m.Normals[base : base+3]
		fmt.Fprintf(&b, "  facet normal %g %g %g\n    outer loop\n", n[0], n[1], n[2])
		for v := 0; v < 3; v++ {
			p := m.Vertices[base+3*v : base+3*v+3]
			fmt.Fprintf(&b, "      vertex %g %g %g\n", p[0], p[1], p[2])
		}
		b.WriteString("    endloop\n  endfacet\n")
	}
	fmt.Fprintf(&b, "endsolid %s\n", name)
	return []byte(b.String())
}

func putFloat(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}
