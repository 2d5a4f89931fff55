package grpcclient

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"tata-codec/internal/pipeline"
)

// SendReportMethod is the unary method the upstream forwarder serves. The
// request is a google.protobuf.Struct holding the JSON form of a report.
const SendReportMethod = "/tata.Forwarder/SendReport"

type Forwarder struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewForwarder(addr string, opts ...grpc.DialOption) (*Forwarder, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Forwarder{conn: conn, timeout: 5 * time.Second}, nil
}

func (f *Forwarder) Close() error {
	return f.conn.Close()
}

func (f *Forwarder) Name() string { return "grpc" }

func (f *Forwarder) Forward(ctx context.Context, r pipeline.Report) error {
	m, err := r.Map()
	if err != nil {
		return err
	}
	req, err := structpb.NewStruct(m)
	if err != nil {
		return fmt.Errorf("report %s to struct: %w", r.Phone, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.conn.Invoke(ctx, SendReportMethod, req, &emptypb.Empty{})
}
