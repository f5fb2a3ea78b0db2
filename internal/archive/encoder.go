package archive

import (
	"bytes"
	"io"
	"sync"

	"Mansoor88-6/session-replay/internal/models"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

const maxPooledBuffer = 1 << 20

var (
	gzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
			return w
		},
	}
	bufferPool = sync.Pool{
		New: func() any { return bytes.NewBuffer(make([]byte, 0, 64<<10)) },
	}
)

// WriteJSONLGZ writes events to w as gzip-compressed JSON lines, one
// SessionEvent per line.
func WriteJSONLGZ(w io.Writer, events []*models.SessionEvent) error {
	gz := gzipPool.Get().(*gzip.Writer)
	gz.Reset(w)
	defer gzipPool.Put(gz)

	enc := json.NewEncoder(gz)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			_ = gz.Close()
			return err
		}
	}
	return gz.Close()
}

// EncodeJSONLGZ is WriteJSONLGZ into a caller-owned byte slice
func EncodeJSONLGZ(events []*models.SessionEvent) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer putBuffer(buf)

	if err := WriteJSONLGZ(buf, events); err != nil {
		return nil, err
	}

	// the pooled buffer is reused, hand back a copy
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return data, nil
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}
