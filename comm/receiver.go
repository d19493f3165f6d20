package comm

import (
	"context"
	"net"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/numbleroot/lwwdict/replica"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Structs

// Receiver accepts states of peer replicas and
// merges them into the local one.
type Receiver struct {
	logger  log.Logger
	replica replica.Service
	server  *grpc.Server
}

// Functions

// NewReceiver returns a receiver serving rep on
// a gRPC server configured with opts.
func NewReceiver(logger log.Logger, rep replica.Service, opts ...grpc.ServerOption) *Receiver {

	recv := &Receiver{
		logger:  logger,
		replica: rep,
		server:  grpc.NewServer(opts...),
	}

	RegisterReceiverServer(recv.server, recv)

	return recv
}

// Push merges the state carried in msg into
// the local replica.
func (recv *Receiver) Push(ctx context.Context, msg *StateMsg) (*Conf, error) {

	if msg == nil {
		return nil, status.Error(codes.InvalidArgument, "received empty state message")
	}

	changed := recv.replica.Merge(msg.State())

	level.Debug(recv.logger).Log(
		"msg", "merged pushed state",
		"from", msg.Replica,
		"additions", len(msg.Additions),
		"removals", len(msg.Removals),
		"changed", changed,
	)

	return &Conf{
		Replica: recv.replica.Name(),
		Changed: changed,
	}, nil
}

// Pull returns the current state of the local replica.
func (recv *Receiver) Pull(ctx context.Context, req *PullReq) (*StateMsg, error) {

	if req != nil {
		level.Debug(recv.logger).Log("msg", "state pulled", "by", req.Replica)
	}

	return NewStateMsg(recv.replica.Name(), recv.replica.State()), nil
}

// Serve accepts connections on socket
// until Stop is called.
func (recv *Receiver) Serve(socket net.Listener) error {

	level.Info(recv.logger).Log(
		"msg", "receiver listening for peer states",
		"addr", socket.Addr().String(),
	)

	err := recv.server.Serve(socket)
	if err != nil && err != grpc.ErrServerStopped {
		return errors.Wrap(err, "serving sync receiver failed")
	}

	return nil
}

// Stop waits for pending RPCs to finish and
// shuts down the gRPC server.
func (recv *Receiver) Stop() {

	recv.server.GracefulStop()
}
