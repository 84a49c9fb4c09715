package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civinigrani/civigate/models"
)

func TestJSONLSink_AppendAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail", "audit.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	defer sink.Close()

	for _, id := range []string{"req-1", "req-2", "req-3"} {
		require.NoError(t, sink.Append(context.Background(), testRecord(id)))
	}

	records, err := sink.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first.
	assert.Equal(t, "req-3", records[0].RequestID)
	assert.Equal(t, "req-1", records[2].RequestID)
	assert.Equal(t, models.DecisionAllowed, records[0].Decision)
}

func TestJSONLSink_RecentLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	defer sink.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Append(context.Background(), testRecord("req")))
	}

	records, err := sink.Recent(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestJSONLSink_ToleratesTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Append(context.Background(), testRecord("good")))
	require.NoError(t, sink.Close())

	// Simulate a crash mid-write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"torn`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	sink2, err := NewJSONLSink(path)
	require.NoError(t, err)
	defer sink2.Close()

	records, err := sink2.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].RequestID)
}

func TestJSONLSink_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), testRecord("first")))
	require.NoError(t, sink.Close())

	sink2, err := NewJSONLSink(path)
	require.NoError(t, err)
	defer sink2.Close()
	require.NoError(t, sink2.Append(context.Background(), testRecord("second")))

	records, err := sink2.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].RequestID)
}
