package imagecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jotter/internal/apperr"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestNormalize_Formats(t *testing.T) {
	src := solid(40, 20)

	var pngBuf, jpgBuf, gifBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	require.NoError(t, jpeg.Encode(&jpgBuf, src, nil))
	require.NoError(t, gif.Encode(&gifBuf, src, nil))

	for name, data := range map[string][]byte{
		"png":  pngBuf.Bytes(),
		"jpeg": jpgBuf.Bytes(),
		"gif":  gifBuf.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			out, info, err := Normalize(data, Limits{})
			require.NoError(t, err)
			assert.Equal(t, name, info.Format)
			assert.False(t, info.Scaled)

			img := decodePNG(t, out)
			assert.Equal(t, 40, img.Bounds().Dx())
			assert.Equal(t, 20, img.Bounds().Dy())
		})
	}
}

func TestNormalize_Downscales(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(300, 100)))

	out, info, err := Normalize(buf.Bytes(), Limits{MaxDimension: 150})
	require.NoError(t, err)
	assert.True(t, info.Scaled)
	assert.Equal(t, 150, info.Width)
	assert.Equal(t, 50, info.Height)

	img := decodePNG(t, out)
	assert.Equal(t, image.Rect(0, 0, 150, 50), img.Bounds())
}

func TestNormalize_RejectsGarbage(t *testing.T) {
	_, _, err := Normalize([]byte("definitely not an image"), Limits{MaxDimension: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, _, err = Normalize(nil, Limits{MaxDimension: 100})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestFit(t *testing.T) {
	cases := []struct{ w, h, max, ww, wh int }{
		{100, 50, 0, 100, 50},
		{100, 50, 200, 100, 50},
		{400, 200, 100, 100, 50},
		{200, 400, 100, 50, 100},
		{1000, 1, 10, 10, 1},
	}
	for _, c := range cases {
		w, h := fit(c.w, c.h, c.max)
		assert.Equal(t, [2]int{c.ww, c.wh}, [2]int{w, h}, "fit(%d,%d,%d)", c.w, c.h, c.max)
	}
}

func TestETag(t *testing.T) {
	a := ETag([]byte("a"))
	assert.Equal(t, a, ETag([]byte("a")))
	assert.NotEqual(t, a, ETag([]byte("b")))
	assert.Len(t, a, 34)
	assert.Equal(t, byte('"'), a[0])
}

// hugePNG returns a tiny PNG whose header declares w×h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()

	// Signature (8) + IHDR length (4) + "IHDR" (4), then width and height.
	const ihdr = 8 + 4
	binary.BigEndian.PutUint32(data[ihdr+4:], w)
	binary.BigEndian.PutUint32(data[ihdr+8:], h)
	crc := crc32.ChecksumIEEE(data[ihdr : ihdr+4+13])
	binary.BigEndian.PutUint32(data[ihdr+4+13:], crc)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int(w), cfg.Width)
	return data
}

func TestNormalize_RejectsOversizedBeforeDecoding(t *testing.T) {
	data := hugePNG(t, 16000, 16000)

	_, _, err := Normalize(data, Limits{MaxDimension: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, "image too large", err.Error())

	_, _, err = Normalize(hugePNG(t, 300, 100), Limits{MaxPixels: 20_000})
	assert.True(t, errors.Is(err, apperr.ErrValidation), "explicit pixel cap")
}

func TestNormalize_PixelCapAllowsSmallerImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(100, 100)))
	_, _, err := Normalize(buf.Bytes(), Limits{MaxPixels: 10_000})
	assert.NoError(t, err)
}
