// Package exchange reads and writes the interchange file used to move
// geometry into the host document. The format is binary STL: single
// precision coordinates, so positions far from the origin lose precision.
package exchange

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chazu/directshape/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	headerSize   = 80
	triangleSize = 50
)

// ErrMalformed is returned for truncated or inconsistent STL data.
var ErrMalformed = errors.New("exchange: malformed STL")

// Write encodes m as binary STL. The header carries m.PartName.
func Write(w io.Writer, m *kernel.Mesh) error {
	if m == nil || m.IsEmpty() {
		return errors.New("exchange: empty mesh")
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d is not a multiple of 3", ErrMalformed, len(m.Indices))
	}

	bw := bufio.NewWriter(w)
	var header [headerSize]byte
	copy(header[:], "directshape "+m.PartName)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}

	n := m.TriangleCount()
	if err := binary.Write(bw, binary.LittleEndian, uint32(n)); err != nil {
		return err
	}

	var rec [triangleSize]byte
	for i := 0; i < n; i++ {
		tri := m.Triangle(i)
		normal := faceNormal(tri)
		putVec(rec[0:], normal)
		putVec(rec[12:], tri[0])
		putVec(rec[24:], tri[1])
		putVec(rec[36:], tri[2])
		binary.LittleEndian.PutUint16(rec[48:], 0)
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes m to path, replacing any existing file.
func WriteFile(path string, m *kernel.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("exchange: write %s: %w", path, err)
	}
	return f.Close()
}

// Read decodes binary STL into a flat mesh with one vertex per corner.
func Read(r io.Reader) (*kernel.Mesh, error) {
	br := bufio.NewReader(r)
	var header [headerSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	var n uint32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: triangle count: %v", ErrMalformed, err)
	}

	m := &kernel.Mesh{
		Vertices: make([]float32, 0, int(n)*9),
		Normals:  make([]float32, 0, int(n)*9),
		Indices:  make([]uint32, 0, int(n)*3),
		PartName: partName(header[:]),
	}
	var rec [triangleSize]byte
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			return nil, fmt.Errorf("%w: triangle %d: %v", ErrMalformed, i, err)
		}
		normal := getVec(rec[0:])
		for j := 0; j < 3; j++ {
			v := getVec(rec[12+12*j:])
			m.Vertices = append(m.Vertices, v[0], v[1], v[2])
			m.Normals = append(m.Normals, normal[0], normal[1], normal[2])
			m.Indices = append(m.Indices, i*3+uint32(j))
		}
	}
	return m, nil
}

// ReadFile reads the STL file at path.
func ReadFile(path string) (*kernel.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("exchange: read %s: %w", path, err)
	}
	return m, nil
}

// Weld merges corners with identical coordinates and returns an indexed
// triangle mesh. A closed result is a solid.
func Weld(m *kernel.Mesh) (*kernel.TriangleMesh, error) {
	index := make(map[[3]float32]int, m.VertexCount())
	var vertices []r3.Vec
	faces := make([][3]int, 0, m.TriangleCount())
	for i := 0; i < m.TriangleCount(); i++ {
		tri := m.Triangle(i)
		var f [3]int
		for j, p := range tri {
			idx, ok := index[p]
			if !ok {
				idx = len(vertices)
				index[p] = idx
				vertices = append(vertices, r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
			}
			f[j] = idx
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			// Collapsed by single precision rounding.
			continue
		}
		faces = append(faces, f)
	}
	return kernel.NewTriangleMesh(vertices, faces)
}

func faceNormal(t [3][3]float32) [3]float32 {
	a := r3.Vec{X: float64(t[0][0]), Y: float64(t[0][1]), Z: float64(t[0][2])}
	b := r3.Vec{X: float64(t[1][0]), Y: float64(t[1][1]), Z: float64(t[1][2])}
	c := r3.Vec{X: float64(t[2][0]), Y: float64(t[2][1]), Z: float64(t[2][2])}
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if l := r3.Norm(n); l > 0 {
		n = r3.Scale(1/l, n)
	}
	return [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
}

func putVec(b []byte, v [3]float32) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(c))
	}
}

func getVec(b []byte) [3]float32 {
	var v [3]float32
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

func partName(header []byte) string {
	h := bytes.TrimRight(header, "\x00")
	h = bytes.TrimPrefix(h, []byte("directshape "))
	return string(bytes.TrimRight(h, " "))
}
