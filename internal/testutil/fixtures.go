package testutil

import "github.com/specialistvlad/scadlive/internal/mesh"

// CubeMesh returns an axis-aligned cube centred on the origin as 12
// triangles.
func CubeMesh(size float32) *mesh.Mesh {
	h := size / 2
	corner := func(x, y, z int) [3]float32 {
		pick := func(v int) float32 {
			if v == 0 {
				return -h
			}
			return h
		}
		return [3]float32{pick(x), pick(y), pick(z)}
	}
	type face struct {
		n       [3]float32
		a, b, c [3]int
		d       [3]int
	}
	faces := []face{
		{n: [3]float32{0, 0, -1}, a: [3]int{0, 0, 0}, b: [3]int{0, 1, 0}, c: [3]int{1, 1, 0}, d: [3]int{1, 0, 0}},
		{n: [3]float32{0, 0, 1}, a: [3]int{0, 0, 1}, b: [3]int{1, 0, 1}, c: [3]int{1, 1, 1}, d: [3]int{0, 1, 1}},
		{n: [3]float32{0, -1, 0}, a: [3]int{0, 0, 0}, b: [3]int{1, 0, 0}, c: [3]int{1, 0, 1}, d: [3]int{0, 0, 1}},
		{n: [3]float32{0, 1, 0}, a: [3]int{0, 1, 0}, b: [3]int{0, 1, 1}, c: [3]int{1, 1, 1}, d: [3]int{1, 1, 0}},
		{n: [3]float32{-1, 0, 0}, a: [3]int{0, 0, 0}, b: [3]int{0, 0, 1}, c: [3]int{0, 1, 1}, d: [3]int{0, 1, 0}},
		{n: [3]float32{1, 0, 0}, a: [3]int{1, 0, 0}, b: [3]int{1, 1, 0}, c: [3]int{1, 1, 1}, d: [3]int{1, 0, 1}},
	}
	m := &mesh.Mesh{}
	add := func(n [3]float32, pts ...[3]int) {
		for _, p := range pts {
			v := corner(p[0], p[1], p[2])
			m.Vertices = append(m.Vertices, v[:]...)
			m.Normals = append(m.Normals, n[:]...)
		}
	}
	for _, f := range faces {
		add(f.n, f.a, f.b, f.c)
		add(f.n, f.a, f.c, f.d)
	}
	return m
}

// CubeSTL returns CubeMesh(size) in binary STL form.
func CubeSTL(size float32) []byte {
	return mesh.Encode(CubeMesh(size))
}

// HoledCubeSource is a centred cube of size 20 with a cylinder hole.
const HoledCubeSource = `$fn = 48;
difference() {
    cube(20, center = true);
    cylinder(h = 22, r = 5, center = true);
}
`
