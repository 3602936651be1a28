// Package lut implements 3D lookup table parsing, color application and the
// catalog of available LUTs with learned camera-profile preferences.
package lut

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// ParseError describes why a .cube file was rejected. Files are rejected
// wholesale: a table is never built from a partially valid file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("lut parse error at line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("lut parse error: %s", e.Msg)
}

// Table is an immutable 3D lookup table. Samples are stored in .cube order:
// red varies fastest, blue slowest. Apply is pure and safe for concurrent
// use across pixels and frames.
type Table struct {
	Size      int
	DomainMin [3]float64
	DomainMax [3]float64

	samples []float64 // 3 * Size^3 components
}

// Parse reads an ASCII .cube file: optional LUT_3D_SIZE, DOMAIN_MIN,
// DOMAIN_MAX and TITLE directives, '#' comments, and a body of N^3
// "r g b" float lines. The declared size must agree with the body line
// count; without a size directive the count must be a perfect cube.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{
		DomainMin: [3]float64{0, 0, 0},
		DomainMax: [3]float64{1, 1, 1},
	}

	declaredSize := 0
	lineNo := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "TITLE":
			continue
		case "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, &ParseError{Line: lineNo, Msg: "LUT_3D_SIZE requires one argument"}
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 2 {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("invalid LUT_3D_SIZE %q", fields[1])}
			}
			declaredSize = n
			continue
		case "DOMAIN_MIN":
			v, err := parseTriple(fields[1:])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: "invalid DOMAIN_MIN"}
			}
			t.DomainMin = v
			continue
		case "DOMAIN_MAX":
			v, err := parseTriple(fields[1:])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: "invalid DOMAIN_MAX"}
			}
			t.DomainMax = v
			continue
		case "LUT_1D_SIZE":
			return nil, &ParseError{Line: lineNo, Msg: "1D LUTs are not supported"}
		}

		if len(fields) != 3 {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("sample line has %d components, want 3", len(fields))}
		}
		v, err := parseTriple(fields)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("non-numeric sample: %v", err)}
		}
		t.samples = append(t.samples, v[0], v[1], v[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}

	count := len(t.samples) / 3
	if declaredSize > 0 {
		if want := declaredSize * declaredSize * declaredSize; count != want {
			return nil, &ParseError{Msg: fmt.Sprintf("declared size %d requires %d samples, found %d", declaredSize, want, count)}
		}
		t.Size = declaredSize
	} else {
		n := int(math.Round(math.Cbrt(float64(count))))
		if n < 2 || n*n*n != count {
			return nil, &ParseError{Msg: fmt.Sprintf("sample count %d is not a perfect cube", count)}
		}
		t.Size = n
	}

	for i := 0; i < 3; i++ {
		if t.DomainMax[i] <= t.DomainMin[i] {
			return nil, &ParseError{Msg: "domain max must exceed domain min"}
		}
	}

	return t, nil
}

// ParseFile parses a .cube file on disk.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func parseTriple(fields []string) ([3]float64, error) {
	var v [3]float64
	if len(fields) != 3 {
		return v, fmt.Errorf("want 3 components, got %d", len(fields))
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, err
		}
		v[i] = x
	}
	return v, nil
}

// sample returns the stored RGB triple at integer lattice coordinates.
func (t *Table) sample(ri, gi, bi int) (float64, float64, float64) {
	idx := ((bi*t.Size+gi)*t.Size + ri) * 3
	return t.samples[idx], t.samples[idx+1], t.samples[idx+2]
}

// Apply maps one RGB value through the cube using trilinear interpolation.
// Inputs are clamped to the table domain first. Lattice-exact inputs return
// the stored sample unchanged.
func (t *Table) Apply(r, g, b float64) (float64, float64, float64) {
	n := float64(t.Size - 1)

	rx := clampUnit((r-t.DomainMin[0])/(t.DomainMax[0]-t.DomainMin[0])) * n
	gx := clampUnit((g-t.DomainMin[1])/(t.DomainMax[1]-t.DomainMin[1])) * n
	bx := clampUnit((b-t.DomainMin[2])/(t.DomainMax[2]-t.DomainMin[2])) * n

	r0, g0, b0 := int(rx), int(gx), int(bx)
	r1, g1, b1 := latticeNext(r0, t.Size), latticeNext(g0, t.Size), latticeNext(b0, t.Size)
	fr, fg, fb := rx-float64(r0), gx-float64(g0), bx-float64(b0)

	// 8 corners, interpolated along red, then green, then blue.
	c000r, c000g, c000b := t.sample(r0, g0, b0)
	c100r, c100g, c100b := t.sample(r1, g0, b0)
	c010r, c010g, c010b := t.sample(r0, g1, b0)
	c110r, c110g, c110b := t.sample(r1, g1, b0)
	c001r, c001g, c001b := t.sample(r0, g0, b1)
	c101r, c101g, c101b := t.sample(r1, g0, b1)
	c011r, c011g, c011b := t.sample(r0, g1, b1)
	c111r, c111g, c111b := t.sample(r1, g1, b1)

	x00r, x00g, x00b := lerp3(c000r, c000g, c000b, c100r, c100g, c100b, fr)
	x10r, x10g, x10b := lerp3(c010r, c010g, c010b, c110r, c110g, c110b, fr)
	x01r, x01g, x01b := lerp3(c001r, c001g, c001b, c101r, c101g, c101b, fr)
	x11r, x11g, x11b := lerp3(c011r, c011g, c011b, c111r, c111g, c111b, fr)

	y0r, y0g, y0b := lerp3(x00r, x00g, x00b, x10r, x10g, x10b, fg)
	y1r, y1g, y1b := lerp3(x01r, x01g, x01b, x11r, x11g, x11b, fg)

	return lerp3(y0r, y0g, y0b, y1r, y1g, y1b, fb)
}

// ApplyRGBA transforms a frame buffer in place, slicing rows across
// workers. The alpha channel is left untouched.
func (t *Table) ApplyRGBA(img *image.RGBA) {
	bounds := img.Bounds()
	height := bounds.Dy()
	if height == 0 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > height {
		workers = height
	}

	rowsPer := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		y0 := bounds.Min.Y + w*rowsPer
		y1 := y0 + rowsPer
		if y1 > bounds.Max.Y {
			y1 = bounds.Max.Y
		}
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			t.applyRows(img, y0, y1)
		}(y0, y1)
	}
	wg.Wait()
}

func (t *Table) applyRows(img *image.RGBA, y0, y1 int) {
	bounds := img.Bounds()
	for y := y0; y < y1; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):img.PixOffset(bounds.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r, g, b := t.Apply(
				float64(row[i])/255.0,
				float64(row[i+1])/255.0,
				float64(row[i+2])/255.0,
			)
			row[i] = clamp8(r)
			row[i+1] = clamp8(g)
			row[i+2] = clamp8(b)
		}
	}
}

func latticeNext(i, size int) int {
	if i+1 < size {
		return i + 1
	}
	return size - 1
}

func lerp3(ar, ag, ab, br, bg, bb, f float64) (float64, float64, float64) {
	return ar + (br-ar)*f, ag + (bg-ag)*f, ab + (bb-ab)*f
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}
