package lut

import (
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identityCube2 = `# identity
LUT_3D_SIZE 2
0 0 0
1 0 0
0 1 0
1 1 0
0 0 1
1 0 1
0 1 1
1 1 1
`

func TestParse_MinimalCube(t *testing.T) {
	table, err := Parse(strings.NewReader(identityCube2))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Size)
	assert.Equal(t, [3]float64{0, 0, 0}, table.DomainMin)
	assert.Equal(t, [3]float64{1, 1, 1}, table.DomainMax)
}

func TestParse_ExtraSampleLineRejected(t *testing.T) {
	_, err := Parse(strings.NewReader(identityCube2 + "0.5 0.5 0.5\n"))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParse_MissingSampleLineRejected(t *testing.T) {
	trimmed := strings.TrimSuffix(identityCube2, "1 1 1\n")
	_, err := Parse(strings.NewReader(trimmed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires 8 samples")
}

func TestParse_NoDirectivePerfectCube(t *testing.T) {
	body := strings.Join(strings.Split(identityCube2, "\n")[2:], "\n")
	table, err := Parse(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Size)
}

func TestParse_NoDirectiveNonCubeRejected(t *testing.T) {
	_, err := Parse(strings.NewReader("0 0 0\n1 1 1\n0.5 0.5 0.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perfect cube")
}

func TestParse_WrongComponentCount(t *testing.T) {
	bad := strings.Replace(identityCube2, "1 0 0\n", "1 0\n", 1)
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 4, perr.Line)
}

func TestParse_NonNumericSample(t *testing.T) {
	bad := strings.Replace(identityCube2, "0 1 0\n", "0 x 0\n", 1)
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric")
}

func TestParse_DomainDirectives(t *testing.T) {
	cube := "DOMAIN_MIN 0 0 0\nDOMAIN_MAX 2 2 2\n" + identityCube2
	table, err := Parse(strings.NewReader(cube))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{2, 2, 2}, table.DomainMax)
}

func TestApply_CornerExact(t *testing.T) {
	cube := strings.Replace(identityCube2, "0 0 0\n", "0.1 0.1 0.1\n", 1)
	table, err := Parse(strings.NewReader(cube))
	require.NoError(t, err)

	r, g, b := table.Apply(0, 0, 0)
	assert.Equal(t, 0.1, r)
	assert.Equal(t, 0.1, g)
	assert.Equal(t, 0.1, b)
}

func TestApply_IdentityMidpoint(t *testing.T) {
	table, err := Parse(strings.NewReader(identityCube2))
	require.NoError(t, err)

	r, g, b := table.Apply(0.5, 0.25, 0.75)
	assert.InDelta(t, 0.5, r, 1e-12)
	assert.InDelta(t, 0.25, g, 1e-12)
	assert.InDelta(t, 0.75, b, 1e-12)
}

func TestApply_Deterministic(t *testing.T) {
	table, err := Parse(strings.NewReader(identityCube2))
	require.NoError(t, err)

	r1, g1, b1 := table.Apply(0.31, 0.62, 0.93)
	r2, g2, b2 := table.Apply(0.31, 0.62, 0.93)
	assert.Equal(t, r1, r2)
	assert.Equal(t, g1, g2)
	assert.Equal(t, b1, b2)
}

func TestApply_ClampsToDomain(t *testing.T) {
	table, err := Parse(strings.NewReader(identityCube2))
	require.NoError(t, err)

	r, g, b := table.Apply(-1, 2, 0.5)
	assert.Equal(t, 0.0, r)
	assert.Equal(t, 1.0, g)
	assert.InDelta(t, 0.5, b, 1e-12)
}

func TestApplyRGBA_IdentityLeavesPixels(t *testing.T) {
	table, err := Parse(strings.NewReader(identityCube2))
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7 % 251)
	}
	want := make([]uint8, len(img.Pix))
	copy(want, img.Pix)

	table.ApplyRGBA(img)

	for i := 0; i < len(img.Pix); i += 4 {
		// Identity cube round-trips 8-bit values within 1 LSB.
		for c := 0; c < 3; c++ {
			got := int(img.Pix[i+c])
			exp := int(want[i+c])
			if got-exp > 1 || exp-got > 1 {
				t.Fatalf("pixel %d channel %d: got %d, want ~%d", i/4, c, got, exp)
			}
		}
		assert.Equal(t, want[i+3], img.Pix[i+3], "alpha must be untouched")
	}
}

func TestParse_SizeDirectiveDisagreesWithBody(t *testing.T) {
	bad := strings.Replace(identityCube2, "LUT_3D_SIZE 2", "LUT_3D_SIZE 3", 1)
	_, err := Parse(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared size 3")
}
