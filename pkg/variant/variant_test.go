package variant

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncodeFullPipelineScenario(t *testing.T) {
	data := testPNG(t, 4000, 3000)

	outputs, err := Encode(data, DefaultProfile().FullPipeline())
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	original, ok := outputs.Get(NameOriginal)
	require.True(t, ok)
	assert.Equal(t, 4000, original.Width)
	assert.Equal(t, 3000, original.Height)
	assert.Equal(t, "image/png", original.ContentType)

	display, ok := outputs.Get(NameDisplay)
	require.True(t, ok)
	assert.Equal(t, 2400, display.Width)
	assert.Equal(t, 1800, display.Height)

	thumb, ok := outputs.Get(NameThumbnail)
	require.True(t, ok)
	assert.Equal(t, 300, thumb.Width)
	assert.Equal(t, 225, thumb.Height)
	assert.Equal(t, "image/jpeg", thumb.ContentType)
	assert.Equal(t, ".jpg", thumb.Ext)
	assert.Equal(t, int64(len(thumb.Data)), thumb.Size)

	decoded, format, err := image.DecodeConfig(bytes.NewReader(thumb.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, decoded.Width)
}

func TestEncodeIsDeterministic(t *testing.T) {
	data := testPNG(t, 640, 480)
	specs := DefaultProfile().FullPipeline()

	first, err := Encode(data, specs)
	require.NoError(t, err)
	second, err := Encode(data, specs)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, bytes.Equal(first[i].Data, second[i].Data), "variant %s differs", first[i].Name)
	}
}

func TestEncodeNeverUpscales(t *testing.T) {
	data := testPNG(t, 120, 80)
	outputs, err := Encode(data, DefaultProfile().FullPipeline())
	require.NoError(t, err)
	for _, out := range outputs {
		assert.Equal(t, 120, out.Width, out.Name)
		assert.Equal(t, 80, out.Height, out.Name)
	}
}

func TestEncodeSourcePassthrough(t *testing.T) {
	data := testPNG(t, 50, 40)
	outputs, err := Encode(data, DefaultProfile().Bulk())
	require.NoError(t, err)

	original, ok := outputs.Get(NameOriginal)
	require.True(t, ok)
	assert.True(t, bytes.Equal(data, original.Data))
	assert.Equal(t, "image/png", original.ContentType)
	assert.Equal(t, 50, original.Width)
}

func TestEncodeErrors(t *testing.T) {
	t.Run("NotAnImage", func(t *testing.T) {
		_, err := Encode([]byte("definitely not an image"), DefaultProfile().FullPipeline())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Encode(nil, DefaultProfile().ThumbnailOnly())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		_, err := Encode(testPNG(t, 10, 10), []Spec{{Name: "x", Format: "avif"}})
		assert.ErrorIs(t, err, ErrEncode)
	})
}

func TestFitDimensions(t *testing.T) {
	cases := []struct {
		name         string
		srcW, srcH   int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"Landscape", 4000, 3000, 2400, 2400, 2400, 1800},
		{"Portrait", 3000, 4000, 300, 300, 225, 300},
		{"Smaller", 100, 50, 300, 300, 100, 50},
		{"Unbounded", 5000, 10, 0, 0, 5000, 10},
		{"WidthOnly", 1000, 500, 500, 0, 500, 250},
		{"ExtremeAspect", 10000, 2, 300, 300, 300, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := FitDimensions(tc.srcW, tc.srcH, tc.maxW, tc.maxH)
			assert.Equal(t, tc.wantW, w)
			assert.Equal(t, tc.wantH, h)
		})
	}
}
