package storage

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/go-faster/errors"
	"github.com/klauspost/compress/zstd"
)

// Codec names the compression applied to stored save states.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecBrotli Codec = "brotli"
	CodecZstd   Codec = "zstd"
)

// ErrUnknownCodec is returned for codec names the store cannot handle.
var ErrUnknownCodec = errors.New("storage: unknown codec")

// ParseCodec validates a codec name from configuration.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(name); c {
	case CodecNone, CodecBrotli, CodecZstd:
		return c, nil
	case "":
		return CodecNone, nil
	}
	return "", errors.Wrap(ErrUnknownCodec, name)
}

func (c Codec) extension() string {
	switch c {
	case CodecBrotli:
		return ".br"
	case CodecZstd:
		return ".zst"
	}
	return ".bin"
}

// codecs holds the reusable zstd coders of a store.
type codecs struct {
	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

func newCodecs() (*codecs, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &codecs{zenc: enc, zdec: dec}, nil
}

func (c *codecs) compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecZstd:
		return c.zenc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case CodecBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Wrap(ErrUnknownCodec, string(codec))
}

func (c *codecs) decompress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecZstd:
		return c.zdec.DecodeAll(data, nil)
	case CodecBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	}
	return nil, errors.Wrap(ErrUnknownCodec, string(codec))
}

func (c *codecs) close() error {
	c.zdec.Close()
	return c.zenc.Close()
}
