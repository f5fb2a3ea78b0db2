package packer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Packer turns one event payload into the string shipped to the collector
type Packer interface {
	Pack(payload string) (string, error)
	Name() string
}

// New returns the packer registered under name: "gzip", "lz4" or "none"
func New(name string) (Packer, error) {
	switch name {
	case "gzip", "":
		return &GzipPacker{}, nil
	case "lz4":
		return LZ4Packer{}, nil
	case "none":
		return NopPacker{}, nil
	default:
		return nil, fmt.Errorf("unknown packer %q", name)
	}
}

const (
	gzipPrefix = "gz:"
	lz4Prefix  = "lz4:"
)

var (
	bufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 16*1024))
		},
	}

	gzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// GzipPacker emits "gz:" followed by base64 of the gzip stream
type GzipPacker struct{}

func (p *GzipPacker) Name() string { return "gzip" }

func (p *GzipPacker) Pack(payload string) (string, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	gz := gzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)
	defer gzipPool.Put(gz)

	if _, err := gz.Write([]byte(payload)); err != nil {
		_ = gz.Close()
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}

	return gzipPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// LZ4Packer emits "lz4:<size>:" followed by base64 of an lz4 block.
// Incompressible payloads are passed through unchanged.
type LZ4Packer struct{}

func (LZ4Packer) Name() string { return "lz4" }

func (LZ4Packer) Pack(payload string) (string, error) {
	src := []byte(payload)
	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	written, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return "", fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 || written >= len(src) {
		return payload, nil
	}

	return lz4Prefix + strconv.Itoa(len(src)) + ":" + base64.StdEncoding.EncodeToString(dst[:written]), nil
}

// NopPacker ships payloads as captured
type NopPacker struct{}

func (NopPacker) Name() string { return "none" }

func (NopPacker) Pack(payload string) (string, error) { return payload, nil }
