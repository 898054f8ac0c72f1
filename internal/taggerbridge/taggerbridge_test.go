package taggerbridge

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakecore/tagimage/internal/timeutil"
)

func TestEventBatch_ValidateRagged(t *testing.T) {
	b := EventBatch{Type: []uint8{0, 0}, Missed: []uint16{0}, Channel: []int32{1, 2}, TimePs: []int64{10, 20}}
	assert.Error(t, b.Validate())
}

func TestEventBatch_ToRawEvents(t *testing.T) {
	b := EventBatch{
		Type:    []uint8{0, 1},
		Missed:  []uint16{0, 3},
		Channel: []int32{1, -2},
		TimePs:  []int64{100, 200},
	}
	events := b.ToRawEvents()
	require.Len(t, events, 2)
	assert.Equal(t, uint8(1), events[1].Type)
	assert.Equal(t, uint16(3), events[1].MissedEvents)
	assert.Equal(t, int32(-2), events[1].Channel)
	assert.EqualValues(t, 200, events[1].Time)
}

func TestReplaySource_YieldsThenEndsStream(t *testing.T) {
	batches := []EventBatch{
		{Type: []uint8{0}, Missed: []uint16{0}, Channel: []int32{1}, TimePs: []int64{1}},
		{Type: []uint8{0}, Missed: []uint16{0}, Channel: []int32{2}, TimePs: []int64{2}},
	}
	src := NewReplaySource(batches)
	ctx := context.Background()

	b1, err := src.NextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b1.Len())

	b2, err := src.NextBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b2.Len())

	_, err = src.NextBatch(ctx)
	assert.ErrorIs(t, err, errEndOfStream)

	require.NoError(t, src.Close())
	_, err = src.NextBatch(ctx)
	assert.Error(t, err)
}

func TestReplaySource_WithPacing_SleepsBetweenBatches(t *testing.T) {
	batches := []EventBatch{
		{Type: []uint8{0}, Missed: []uint16{0}, Channel: []int32{1}, TimePs: []int64{1}},
		{Type: []uint8{0}, Missed: []uint16{0}, Channel: []int32{2}, TimePs: []int64{2}},
	}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	src := NewReplaySource(batches).WithPacing(10*time.Millisecond, clock)
	ctx := context.Background()

	_, err := src.NextBatch(ctx)
	require.NoError(t, err)
	_, err = src.NextBatch(ctx)
	require.NoError(t, err)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	assert.Equal(t, 10*time.Millisecond, sleeps[0])
	assert.Equal(t, 10*time.Millisecond, sleeps[1])
}

func TestToBatchSource_TranslatesEndOfStream(t *testing.T) {
	src := NewReplaySource([]EventBatch{
		{Type: []uint8{0}, Missed: []uint16{0}, Channel: []int32{1}, TimePs: []int64{5}},
	})
	bs := ToBatchSource(src)
	ctx := context.Background()

	batch, ok, err := bs.NextBatch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, batch.Events, 1)

	_, ok, err = bs.NextBatch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestToBatchSource_RaggedBatchIsStreamWarning(t *testing.T) {
	src := NewReplaySource([]EventBatch{
		{Type: []uint8{0, 0}, Missed: []uint16{0}, Channel: []int32{1, 2}, TimePs: []int64{1, 2}},
	})
	bs := ToBatchSource(src)
	_, ok, err := bs.NextBatch(context.Background())
	require.Error(t, err)
	assert.True(t, ok)
}

func TestLoadRecordBatches_SplitsAtBatchSize(t *testing.T) {
	buf := &bytes.Buffer{}
	for i := int64(0); i < 5; i++ {
		buf.Write(EncodeRecord(0, 0, 1, i*100))
	}

	batches, err := LoadRecordBatches(buf, 2)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Len())
	assert.Equal(t, 2, batches[1].Len())
	assert.Equal(t, 1, batches[2].Len())
	assert.EqualValues(t, 400, batches[2].TimePs[0])
}

func TestLoadRecordBatches_RejectsTruncatedRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write(EncodeRecord(0, 0, 1, 100))
	buf.Write([]byte{0x01, 0x02}) // partial trailing record

	_, err := LoadRecordBatches(buf, 16)
	assert.Error(t, err)
}

// fakeSerialPort is an io.ReadWriteCloser backed by an in-memory
// buffer, standing in for hardware.
type fakeSerialPort struct {
	*bytes.Buffer
}

func (f *fakeSerialPort) Close() error { return nil }

func TestSerialEventSource_DecodesFixedWidthRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write(EncodeRecord(0, 0, 3, 1000))
	buf.Write(EncodeRecord(0, 2, 4, 2000))
	port := &fakeSerialPort{Buffer: buf}

	src := NewSerialEventSource(port, 16)
	batch, err := src.NextBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())
	assert.EqualValues(t, 3, batch.Channel[0])
	assert.EqualValues(t, 1000, batch.TimePs[0])
	assert.EqualValues(t, 2, batch.Missed[1])
	assert.EqualValues(t, 2000, batch.TimePs[1])

	_, err = src.NextBatch(context.Background())
	assert.ErrorIs(t, err, errEndOfStream)
}
