package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/snakecore/tagimage/internal/snake"
)

// GRPCRepublisher republishes frames pulled from a Sink to connected
// remote viewers over a single server-streaming RPC. No
// .proto-derived package ships with this repo, so each frame is
// JSON-encoded and carried inside the well-known wrapper type
// google.golang.org/protobuf/types/known/wrapperspb.BytesValue —
// a real generated message without a codegen step.
type GRPCRepublisher struct {
	sink     *Sink
	server   *grpc.Server
	listener net.Listener
}

// frameStreamServiceDesc is a hand-written grpc.ServiceDesc for the one
// streaming RPC this collaborator exposes. Writing it by hand in place
// of protoc-generated code is unusual only in scale, not in kind: it is
// the same shape grpc-go's codegen emits, narrowed to a single method.
var frameStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: "snakecore.FrameStream",
	HandlerType: (*any)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       frameStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "snakecore/framestream.proto",
}

// NewGRPCRepublisher binds a Sink's consumer side to a gRPC server that
// streams flushed frames to subscribers once Start is called. Each frame
// read from the sink's Frames channel goes to exactly one reader:
// concurrent subscribers, and any other reader of the same Sink, split
// the frames between them rather than each receiving every frame.
func NewGRPCRepublisher(sink *Sink) *GRPCRepublisher {
	return &GRPCRepublisher{sink: sink}
}

// Start listens on addr and begins serving. It returns once the
// listener is bound; serving continues on a background goroutine.
func (r *GRPCRepublisher) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("stream: failed to listen on %q: %w", addr, err)
	}
	r.listener = lis

	r.server = grpc.NewServer()
	r.server.RegisterService(&frameStreamServiceDesc, r)

	go func() {
		if err := r.server.Serve(lis); err != nil {
			log.Printf("[stream] grpc server stopped: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the gRPC server.
func (r *GRPCRepublisher) Stop() {
	if r.server != nil {
		r.server.GracefulStop()
	}
}

func frameStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	r := srv.(*GRPCRepublisher)
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-r.sink.Frames():
			if !ok {
				return nil
			}
			payload, err := encodeFrame(frame)
			if err != nil {
				return err
			}
			if err := stream.SendMsg(&wrapperspb.BytesValue{Value: payload}); err != nil {
				return err
			}
		}
	}
}

// wireFrame is the JSON wire shape for a finished-frame payload, flat
// enough to decode without reconstructing the map[VoxelKey] types.
type wireFrame struct {
	Sequence     uint64       `json:"sequence"`
	MaxFrameTime int64        `json:"max_frame_time_ps"`
	Voxels       []wireVoxel  `json:"voxels"`
	Merged       []wireMerged `json:"merged"`
}

type wireVoxel struct {
	Channel int   `json:"channel"`
	Row     int32 `json:"row"`
	Column  int32 `json:"column"`
	Plane   int32 `json:"plane"`
	Count   uint8 `json:"count"`
}

type wireMerged struct {
	Row    int32 `json:"row"`
	Column int32 `json:"column"`
	Plane  int32 `json:"plane"`
	R      uint8 `json:"r"`
	G      uint8 `json:"g"`
	B      uint8 `json:"b"`
}

func encodeFrame(frame snake.FinishedFrame) ([]byte, error) {
	w := wireFrame{
		Sequence:     frame.Sequence,
		MaxFrameTime: int64(frame.MaxFrameTime),
	}
	for channel, m := range frame.Channels {
		for key, count := range m {
			w.Voxels = append(w.Voxels, wireVoxel{Channel: channel, Row: key.Row, Column: key.Column, Plane: key.Plane, Count: count})
		}
	}
	for key, color := range frame.Merged {
		w.Merged = append(w.Merged, wireMerged{Row: key.Row, Column: key.Column, Plane: key.Plane, R: color.R, G: color.G, B: color.B})
	}
	return json.Marshal(w)
}

// DecodeFrame parses a republished payload back into its wire shape,
// for a remote viewer or for tests verifying the republisher's output.
func DecodeFrame(payload []byte) (sequence uint64, maxFrameTime int64, voxels []wireVoxel, merged []wireMerged, err error) {
	var w wireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return 0, 0, nil, nil, err
	}
	return w.Sequence, w.MaxFrameTime, w.Voxels, w.Merged, nil
}
