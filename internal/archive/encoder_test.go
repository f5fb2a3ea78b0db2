package archive

import (
	"bufio"
	"bytes"
	"testing"

	"Mansoor88-6/session-replay/internal/models"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []models.SessionEvent {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer zr.Close()

	var out []models.SessionEvent
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		var ev models.SessionEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestEncodeJSONLGZ(t *testing.T) {
	events := []*models.SessionEvent{
		{ID: 1, SessionID: "s1", EventData: "gz:abc", Timestamp: 100},
		{ID: 2, SessionID: "s1", EventData: `{"type":3}`, Timestamp: 100},
	}

	data, err := EncodeJSONLGZ(events)
	require.NoError(t, err)

	got := decodeLines(t, data)
	require.Len(t, got, 2)
	assert.Equal(t, *events[0], got[0])
	assert.Equal(t, *events[1], got[1])
}

func TestEncodeReturnsIndependentSlices(t *testing.T) {
	first, err := EncodeJSONLGZ([]*models.SessionEvent{{ID: 1, SessionID: "a"}})
	require.NoError(t, err)
	snapshot := append([]byte(nil), first...)

	_, err = EncodeJSONLGZ([]*models.SessionEvent{{ID: 2, SessionID: "b"}})
	require.NoError(t, err)

	assert.Equal(t, snapshot, first)
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONLGZ(&buf, nil))
	assert.Empty(t, decodeLines(t, buf.Bytes()))
}
