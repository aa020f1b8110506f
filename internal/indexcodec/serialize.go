package indexcodec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"podsearch/internal/logging"
	"podsearch/internal/searchentry"
	"podsearch/internal/searchindex"
	"podsearch/internal/services"
)

const (
	magic         = "PSIX"
	formatVersion = 1
	// ctxCheckEvery bounds how many documents are coded between context checks.
	ctxCheckEvery = 1024
)

// ErrCorrupt marks an index blob that cannot be decoded.
var ErrCorrupt = services.Wrap(services.ErrDataIntegrity, "indexcodec", "decode", "corrupt index data", nil)

// Stats describes one serialization or deserialization.
type Stats struct {
	Codec           string
	Documents       int
	EncodedBytes    int64
	CompressedBytes int64
	Elapsed         time.Duration
}

// Ratio is compressed size over encoded size.
func (s Stats) Ratio() float64 {
	if s.EncodedBytes == 0 {
		return 0
	}
	return float64(s.CompressedBytes) / float64(s.EncodedBytes)
}

func (s Stats) attrs() []logging.Attr {
	return []logging.Attr{
		logging.String("codec", s.Codec),
		logging.Int("documents", s.Documents),
		logging.Int64("encoded_bytes", s.EncodedBytes),
		logging.Int64("compressed_bytes", s.CompressedBytes),
		logging.Float64("ratio", s.Ratio()),
		logging.Duration("elapsed", s.Elapsed),
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Serialize writes ix to w. The output starts with an uncompressed header
// naming the codec, followed by the compressed document stream. Stream codecs
// never hold the encoded index in memory; buffer codecs do.
func Serialize(ctx context.Context, ix *searchindex.Index, codec Codec, w io.Writer, logger *slog.Logger) (Stats, error) {
	logger = logging.NewComponentLogger(logger, "indexcodec")
	start := time.Now()
	stats := Stats{Codec: codec.Name(), Documents: ix.Len()}

	out := &countingWriter{w: w}
	if err := writeHeader(out, codec.Name()); err != nil {
		return stats, services.Wrap(services.ErrStorage, "indexcodec", "write header", "failed to write index header", err)
	}

	var (
		sink   io.Writer
		closer io.Closer
		buf    *bytes.Buffer
	)
	switch c := codec.(type) {
	case StreamCodec:
		cw, err := c.NewWriter(out)
		if err != nil {
			return stats, services.Wrap(services.ErrConfiguration, "indexcodec", "open writer", "failed to start "+c.Name()+" compressor", err)
		}
		sink, closer = cw, cw
	case BufferCodec:
		buf = &bytes.Buffer{}
		sink = buf
	default:
		return stats, services.Wrap(services.ErrConfiguration, "indexcodec", "serialize", fmt.Sprintf("codec %q has no encoder", codec.Name()), nil)
	}

	encoded := &countingWriter{w: sink}
	bw := bufio.NewWriterSize(encoded, 64<<10)
	if err := encodeDocuments(ctx, ix, bw); err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return stats, err
	}
	if err := bw.Flush(); err != nil {
		return stats, services.Wrap(services.ErrStorage, "indexcodec", "flush", "failed to write index body", err)
	}
	stats.EncodedBytes = encoded.n
	logger.Debug("index encoded", logging.Int("documents", stats.Documents), logging.Int64("encoded_bytes", stats.EncodedBytes))

	if closer != nil {
		if err := closer.Close(); err != nil {
			return stats, services.Wrap(services.ErrStorage, "indexcodec", "close writer", "failed to finish compressed stream", err)
		}
	}
	if buf != nil {
		packed, err := codec.(BufferCodec).Encode(buf.Bytes())
		if err != nil {
			return stats, services.Wrap(services.ErrStorage, "indexcodec", "compress", "failed to compress index", err)
		}
		buf = nil
		if _, err := out.Write(packed); err != nil {
			return stats, services.Wrap(services.ErrStorage, "indexcodec", "write body", "failed to write index body", err)
		}
	}

	stats.CompressedBytes = out.n
	stats.Elapsed = time.Since(start)
	logger.Info("index serialized", logging.Args(stats.attrs()...)...)
	return stats, nil
}

func encodeDocuments(ctx context.Context, ix *searchindex.Index, w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	if err := enc.EncodeArrayLen(ix.Len()); err != nil {
		return services.Wrap(services.ErrStorage, "indexcodec", "encode", "failed to encode document count", err)
	}
	n := 0
	return ix.Each(func(e searchentry.Entry) error {
		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := enc.Encode(&e); err != nil {
			return services.Wrap(services.ErrStorage, "indexcodec", "encode", "failed to encode document "+e.ID, err)
		}
		return nil
	})
}

func writeHeader(w io.Writer, codecName string) error {
	if len(codecName) > 255 {
		return errors.New("codec name too long")
	}
	header := make([]byte, 0, len(magic)+2+len(codecName))
	header = append(header, magic...)
	header = append(header, formatVersion, byte(len(codecName)))
	header = append(header, codecName...)
	_, err := w.Write(header)
	return err
}

func readHeader(r io.Reader) (string, error) {
	fixed := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return "", fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if string(fixed[:len(magic)]) != magic {
		return "", fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if fixed[len(magic)] != formatVersion {
		return "", fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, fixed[len(magic)])
	}
	name := make([]byte, fixed[len(magic)+1])
	if _, err := io.ReadFull(r, name); err != nil {
		return "", fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	return string(name), nil
}

// Deserialize reads an index written by Serialize. When codec is nil the codec
// named in the header is used; otherwise the header must name the same codec.
// Documents are inserted as they are decoded.
func Deserialize(ctx context.Context, r io.Reader, codec Codec, logger *slog.Logger) (*searchindex.Index, Stats, error) {
	logger = logging.NewComponentLogger(logger, "indexcodec")
	start := time.Now()
	in := &countingReader{r: r}

	name, err := readHeader(in)
	if err != nil {
		return nil, Stats{}, err
	}
	if codec == nil {
		if codec, err = Lookup(name); err != nil {
			return nil, Stats{}, fmt.Errorf("%w: header names unknown codec %q", ErrCorrupt, name)
		}
	} else if codec.Name() != name {
		return nil, Stats{}, services.Wrap(services.ErrConfiguration, "indexcodec", "deserialize",
			fmt.Sprintf("index was written with %q, expected %q", name, codec.Name()), nil)
	}
	stats := Stats{Codec: name}

	var src io.Reader
	switch c := codec.(type) {
	case StreamCodec:
		cr, err := c.NewReader(in)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer cr.Close()
		src = cr
	case BufferCodec:
		packed, err := io.ReadAll(in)
		if err != nil {
			return nil, stats, services.Wrap(services.ErrStorage, "indexcodec", "read", "failed to read index", err)
		}
		raw, err := c.Decode(packed)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		src = bytes.NewReader(raw)
	default:
		return nil, stats, services.Wrap(services.ErrConfiguration, "indexcodec", "deserialize", fmt.Sprintf("codec %q has no decoder", name), nil)
	}

	decoded := &countingReader{r: src}
	ix, err := decodeDocuments(ctx, bufio.NewReaderSize(decoded, 64<<10))
	if err != nil {
		return nil, stats, err
	}
	stats.Documents = ix.Len()
	stats.EncodedBytes = decoded.n
	stats.CompressedBytes = in.n
	stats.Elapsed = time.Since(start)
	logger.Info("index deserialized", logging.Args(stats.attrs()...)...)
	return ix, stats, nil
}

func decodeDocuments(ctx context.Context, r io.Reader) (*searchindex.Index, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: missing document list", ErrCorrupt)
	}
	ix := searchindex.New()
	for i := 0; i < n; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var e searchentry.Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", ErrCorrupt, i, err)
		}
		if err := ix.Insert(e); err != nil {
			return nil, err
		}
	}
	return ix, nil
}
