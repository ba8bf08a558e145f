// Package imageio persists rendered 8-bit RGB images.
package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// Buffer is an RGB8 image.  Pixels are stored row-major with the origin at
// the top-left corner, three bytes per pixel.
type Buffer struct {
	Width, Height int
	Pix           []byte
}

func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, 3*width*height),
	}
}

func (b *Buffer) offset(x, y int) int {
	return 3 * (y*b.Width + x)
}

func (b *Buffer) Set(x, y int, c [3]uint8) {
	o := b.offset(x, y)
	copy(b.Pix[o:o+3], c[:])
}

func (b *Buffer) At(x, y int) [3]uint8 {
	o := b.offset(x, y)
	return [3]uint8{b.Pix[o], b.Pix[o+1], b.Pix[o+2]}
}

// Image converts b to an opaque image.Image.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := b.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: c[0], G: c[1], B: c[2], A: 0xff})
		}
	}
	return img
}

type Format int

const (
	PNG Format = iota
	JPEG
)

func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	}
	return "image/png"
}

// FormatFor picks the encoding from the extension of name.
func FormatFor(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return PNG, nil
	case ".jpg", ".jpeg":
		return JPEG, nil
	}
	return 0, &EncodeError{Name: name, inner: fmt.Errorf("unsupported image extension %q", path.Ext(name))}
}

// EncodeError reports that an image could not be encoded, as opposed to
// failing to reach its destination.
type EncodeError struct {
	Name  string
	inner error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("while encoding %q: %v", e.Name, e.inner)
}

func (e *EncodeError) Unwrap() error {
	return e.inner
}

func IsEncodeError(err error) bool {
	var e *EncodeError
	return errors.As(err, &e)
}

// Encode writes b to w in the format implied by name.
func Encode(w io.Writer, name string, b *Buffer) error {
	f, err := FormatFor(name)
	if err != nil {
		return err
	}

	switch f {
	case JPEG:
		err = jpeg.Encode(w, b.Image(), &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(w, b.Image())
	}
	if err != nil {
		return &EncodeError{Name: name, inner: err}
	}
	return nil
}

// ParseGCSURL splits a gs://bucket/object name.
func ParseGCSURL(name string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(name, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

// Save encodes b and stores it at name, which is either a local path or a
// gs://bucket/object URL.  opts configure the Cloud Storage client.
//
// The image is encoded in full before anything is written, so an encoding
// failure never leaves a partial file behind.
func Save(ctx context.Context, name string, b *Buffer, opts ...option.ClientOption) error {
	tracer := otel.Tracer("row-major/pathtracer/imageio")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "imageio.Save")
	defer span.End()

	span.SetAttributes(attribute.String("name", name))

	var encoded bytes.Buffer
	if err := Encode(&encoded, name, b); err != nil {
		return err
	}

	if bucket, object, ok := ParseGCSURL(name); ok {
		f, _ := FormatFor(name)
		if err := saveGCS(ctx, bucket, object, f.ContentType(), encoded.Bytes(), opts); err != nil {
			return fmt.Errorf("while uploading to %q: %w", name, err)
		}
		return nil
	}

	if err := os.WriteFile(name, encoded.Bytes(), 0644); err != nil {
		return fmt.Errorf("while writing output file: %w", err)
	}
	return nil
}

func saveGCS(ctx context.Context, bucket, object, contentType string, data []byte, opts []option.ClientOption) error {
	gcsClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("while creating GCS client: %w", err)
	}
	defer gcsClient.Close()

	w := gcsClient.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("while writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("while finalizing object: %w", err)
	}
	return nil
}
