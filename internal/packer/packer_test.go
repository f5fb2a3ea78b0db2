package packer

import (
	"encoding/base64"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvent = `{"type":3,"data":{"source":2,"type":2,"id":42,"x":120,"y":388},"timestamp":1700000000123}`

func TestNew(t *testing.T) {
	for name, want := range map[string]string{"": "gzip", "gzip": "gzip", "lz4": "lz4", "none": "none"} {
		p, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, want, p.Name())
	}

	_, err := New("zip")
	assert.Error(t, err)
}

func TestGzipPacker(t *testing.T) {
	p := &GzipPacker{}

	packed, err := p.Pack(sampleEvent)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(packed, "gz:"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(packed, "gz:"))
	require.NoError(t, err)
	r, err := gzip.NewReader(strings.NewReader(string(raw)))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent, string(out))

	// pooled writers must not leak state between calls
	again, err := p.Pack(sampleEvent)
	require.NoError(t, err)
	assert.Equal(t, packed, again)
}

func TestLZ4Packer(t *testing.T) {
	payload := strings.Repeat(sampleEvent, 20)

	packed, err := LZ4Packer{}.Pack(payload)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(packed, "lz4:"))

	parts := strings.SplitN(strings.TrimPrefix(packed, "lz4:"), ":", 2)
	require.Len(t, parts, 2)
	size, err := strconv.Atoi(parts[0])
	require.NoError(t, err)
	block, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(block, dst)
	require.NoError(t, err)
	assert.Equal(t, payload, string(dst[:n]))
}

func TestLZ4PackerPassesThroughIncompressible(t *testing.T) {
	packed, err := LZ4Packer{}.Pack("{}")
	require.NoError(t, err)
	assert.Equal(t, "{}", packed)
}

func TestNopPacker(t *testing.T) {
	packed, err := NopPacker{}.Pack(sampleEvent)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent, packed)
}
