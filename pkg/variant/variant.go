// Package variant derives resized and re-encoded image variants from an
// uploaded buffer. It performs no I/O and is deterministic: identical input
// bytes and specs always produce identical output bytes.
package variant

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/tiff"
	// Decoders beyond the ones imaging registers.
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode reports an input that is not a decodable raster image.
	ErrDecode = errors.New("decode image")
	// ErrEncode reports an unsupported target format or a failed encode.
	ErrEncode = errors.New("encode image")
)

// Format is the encoding of a produced variant.
type Format string

const (
	FormatPNG  Format = "png"  // lossless
	FormatJPEG Format = "jpeg" // lossy, uses Spec.Quality
	// FormatSource stores the input bytes untouched after checking they decode.
	FormatSource Format = "source"

	DefaultJPEGQuality = 85
)

// Spec describes one variant to produce.
type Spec struct {
	Name       string
	MaxWidth   int // 0 means unbounded
	MaxHeight  int // 0 means unbounded
	Format     Format
	Quality    int
	AutoOrient bool
}

// Output is an encoded variant.
type Output struct {
	Name        string
	Data        []byte
	Size        int64
	Width       int
	Height      int
	ContentType string
	Ext         string
}

// Outputs is the ordered result of Encode.
type Outputs []Output

// Get returns the output with the given name.
func (o Outputs) Get(name string) (Output, bool) {
	for _, out := range o {
		if out.Name == name {
			return out, true
		}
	}
	return Output{}, false
}

// Encode produces one output per spec, in spec order. The input is decoded at
// most twice (once with and once without orientation normalisation).
func Encode(data []byte, specs []Spec) (Outputs, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, sourceFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	decoded := map[bool]image.Image{}
	decode := func(orient bool) (image.Image, error) {
		if img, ok := decoded[orient]; ok {
			return img, nil
		}
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(orient))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		decoded[orient] = img
		return img, nil
	}

	outputs := make(Outputs, 0, len(specs))
	for _, spec := range specs {
		if spec.Format == FormatSource {
			outputs = append(outputs, Output{
				Name:        spec.Name,
				Data:        data,
				Size:        int64(len(data)),
				Width:       cfg.Width,
				Height:      cfg.Height,
				ContentType: "image/" + sourceFormat,
				Ext:         extensionFor(sourceFormat),
			})
			continue
		}
		if _, _, err := encoderFor(spec); err != nil {
			return nil, err
		}

		src, err := decode(spec.AutoOrient)
		if err != nil {
			return nil, err
		}
		out, err := render(src, spec)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func render(src image.Image, spec Spec) (Output, error) {
	bounds := src.Bounds()
	w, h := FitDimensions(bounds.Dx(), bounds.Dy(), spec.MaxWidth, spec.MaxHeight)

	img := src
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(src, w, h, imaging.Lanczos)
	}

	format, opts, err := encoderFor(spec)
	if err != nil {
		return Output{}, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return Output{}, fmt.Errorf("%w: %s: %v", ErrEncode, spec.Format, err)
	}

	contentType, ext := "image/png", ".png"
	if spec.Format == FormatJPEG {
		contentType, ext = "image/jpeg", ".jpg"
	}
	return Output{
		Name:        spec.Name,
		Data:        buf.Bytes(),
		Size:        int64(buf.Len()),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ContentType: contentType,
		Ext:         ext,
	}, nil
}

func encoderFor(spec Spec) (imaging.Format, []imaging.EncodeOption, error) {
	switch spec.Format {
	case FormatPNG:
		return imaging.PNG, []imaging.EncodeOption{imaging.PNGCompressionLevel(png.DefaultCompression)}, nil
	case FormatJPEG:
		quality := spec.Quality
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return imaging.JPEG, []imaging.EncodeOption{imaging.JPEGQuality(quality)}, nil
	default:
		return 0, nil, fmt.Errorf("%w: unsupported format %q", ErrEncode, spec.Format)
	}
}

// FitDimensions scales (srcW, srcH) down into the (maxW, maxH) box keeping the
// aspect ratio. It never scales up.
func FitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}
	scale := 1.0
	if maxW > 0 && srcW > maxW {
		scale = math.Min(scale, float64(maxW)/float64(srcW))
	}
	if maxH > 0 && srcH > maxH {
		scale = math.Min(scale, float64(maxH)/float64(srcH))
	}
	if scale >= 1 {
		return srcW, srcH
	}
	w := clamp(int(math.Round(float64(srcW)*scale)), 1, maxOr(maxW, srcW))
	h := clamp(int(math.Round(float64(srcH)*scale)), 1, maxOr(maxH, srcH))
	return w, h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxOr(limit, fallback int) int {
	if limit > 0 {
		return limit
	}
	return fallback
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "tiff":
		return ".tif"
	case "":
		return ""
	default:
		return "." + format
	}
}
