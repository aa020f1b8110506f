package indexcodec

import (
	"fmt"
	"io"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"podsearch/internal/config"
	"podsearch/internal/services"
)

// Codec is a named compression scheme.
type Codec interface {
	Name() string
}

// StreamCodec compresses incrementally.
type StreamCodec interface {
	Codec
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// BufferCodec compresses whole buffers. The serializer holds the full encoded
// index in memory when a codec only offers this form.
type BufferCodec interface {
	Codec
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

var registry = map[string]Codec{
	config.CompressionNone:   noneCodec{},
	config.CompressionGzip:   gzipCodec{},
	config.CompressionZstd:   zstdCodec{},
	config.CompressionBrotli: brotliCodec{},
	config.CompressionS2:     s2Codec{},
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "indexcodec", "lookup", fmt.Sprintf("unknown codec %q", name), nil)
	}
	return c, nil
}

// Names lists registered codecs.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type noneCodec struct{}

func (noneCodec) Name() string { return config.CompressionNone }

func (noneCodec) NewWriter(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil }

func (noneCodec) NewReader(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }

type gzipCodec struct{}

func (gzipCodec) Name() string { return config.CompressionGzip }

func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, gzip.DefaultCompression)
}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return config.CompressionZstd }

func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
	if err != nil {
		return nil, err
	}
	return zstdReadCloser{d}, nil
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

type brotliCodec struct{}

func (brotliCodec) Name() string { return config.CompressionBrotli }

func (brotliCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
}

func (brotliCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

// s2Codec uses the block format, so it only works on whole buffers.
type s2Codec struct{}

func (s2Codec) Name() string { return config.CompressionS2 }

func (s2Codec) Encode(src []byte) ([]byte, error) { return s2.Encode(nil, src), nil }

func (s2Codec) Decode(src []byte) ([]byte, error) { return s2.Decode(nil, src) }
