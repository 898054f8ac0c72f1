package taggerbridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// recordSize is the wire size of one fixed-width event record: type
// (1 byte), missed_events (2 bytes), channel (4 bytes), time (8 bytes),
// little-endian. This is a reference framing, not a vendor protocol —
// it exists so SerialEventSource has something concrete to decode, and
// so replay fixtures have a stable on-disk format.
const recordSize = 1 + 2 + 4 + 8

// SerialPort is the minimal surface SerialEventSource needs from a
// serial connection, narrowed from go.bug.st/serial.Port so tests can
// substitute an in-memory io.ReadWriteCloser instead of real hardware.
type SerialPort interface {
	io.ReadWriteCloser
}

// OpenSerialPort opens a go.bug.st/serial port in 8N1 mode at the
// given baud rate.
func OpenSerialPort(portName string, baudRate int) (SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("taggerbridge: failed to open serial port %q: %w", portName, err)
	}
	return port, nil
}

// SerialEventSource reads fixed-width event records off a SerialPort
// and groups them into batches of up to batchSize rows. It demonstrates
// the shape a real tagger-driver bridge adapter would take without
// implementing an actual instrument protocol.
type SerialEventSource struct {
	port      SerialPort
	reader    *bufio.Reader
	batchSize int
}

// NewSerialEventSource wraps an open SerialPort. batchSize bounds how
// many records NextBatch reads before returning, so a slow trickle of
// events doesn't block the driver indefinitely on a single read.
func NewSerialEventSource(port SerialPort, batchSize int) *SerialEventSource {
	if batchSize <= 0 {
		batchSize = 4096
	}
	return &SerialEventSource{
		port:      port,
		reader:    bufio.NewReaderSize(port, recordSize*batchSize),
		batchSize: batchSize,
	}
}

// NextBatch reads up to batchSize records, blocking until at least one
// is available or the port is closed/errors.
func (s *SerialEventSource) NextBatch(ctx context.Context) (EventBatch, error) {
	var batch EventBatch
	buf := make([]byte, recordSize)

	for i := 0; i < s.batchSize; i++ {
		select {
		case <-ctx.Done():
			if batch.Len() > 0 {
				return batch, nil
			}
			return EventBatch{}, ctx.Err()
		default:
		}

		if _, err := io.ReadFull(s.reader, buf); err != nil {
			if err == io.EOF && batch.Len() > 0 {
				return batch, nil
			}
			if err == io.EOF {
				return EventBatch{}, errEndOfStream
			}
			return EventBatch{}, fmt.Errorf("taggerbridge: serial read failed: %w", err)
		}

		batch.Type = append(batch.Type, buf[0])
		batch.Missed = append(batch.Missed, binary.LittleEndian.Uint16(buf[1:3]))
		batch.Channel = append(batch.Channel, int32(binary.LittleEndian.Uint32(buf[3:7])))
		batch.TimePs = append(batch.TimePs, int64(binary.LittleEndian.Uint64(buf[7:15])))

		if s.reader.Buffered() == 0 {
			break
		}
	}
	return batch, nil
}

// Close closes the underlying serial port.
func (s *SerialEventSource) Close() error {
	return s.port.Close()
}

// LoadRecordBatches decodes an entire stream of fixed-width event
// records into batches of up to batchSize rows, for replay fixtures
// recorded from a live tagger.
func LoadRecordBatches(r io.Reader, batchSize int) ([]EventBatch, error) {
	if batchSize <= 0 {
		batchSize = 4096
	}
	var batches []EventBatch
	var cur EventBatch
	buf := make([]byte, recordSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("taggerbridge: truncated record at end of stream")
			}
			return nil, fmt.Errorf("taggerbridge: record read failed: %w", err)
		}
		cur.Type = append(cur.Type, buf[0])
		cur.Missed = append(cur.Missed, binary.LittleEndian.Uint16(buf[1:3]))
		cur.Channel = append(cur.Channel, int32(binary.LittleEndian.Uint32(buf[3:7])))
		cur.TimePs = append(cur.TimePs, int64(binary.LittleEndian.Uint64(buf[7:15])))
		if cur.Len() == batchSize {
			batches = append(batches, cur)
			cur = EventBatch{}
		}
	}
	if cur.Len() > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}

// EncodeRecord serializes one event row into the fixed-width wire
// format NextBatch decodes, for tests and for a replay fixture writer.
func EncodeRecord(typ uint8, missed uint16, channel int32, timePs int64) []byte {
	buf := make([]byte, recordSize)
	buf[0] = typ
	binary.LittleEndian.PutUint16(buf[1:3], missed)
	binary.LittleEndian.PutUint32(buf[3:7], uint32(channel))
	binary.LittleEndian.PutUint64(buf[7:15], uint64(timePs))
	return buf
}
