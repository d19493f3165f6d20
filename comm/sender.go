package comm

import (
	"context"
	"sort"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/numbleroot/lwwdict/replica"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

// Structs

// Sender periodically exchanges full state with
// every peer of the local replica.
type Sender struct {
	logger   log.Logger
	replica  replica.Service
	interval time.Duration
	timeout  time.Duration
	names    []string
	peers    map[string]ReceiverClient
	conns    []*grpc.ClientConn
}

// Functions

// InitSender prepares a client connection to each of
// peers, a map of peer name to sync address. Connections
// are established lazily on first use, so peers that are
// down do not prevent startup.
func InitSender(logger log.Logger, rep replica.Service, peers map[string]string, interval time.Duration, opts ...grpc.DialOption) (*Sender, error) {

	sender := &Sender{
		logger:   logger,
		replica:  rep,
		interval: interval,
		timeout:  interval,
		names:    make([]string, 0, len(peers)),
		peers:    make(map[string]ReceiverClient, len(peers)),
		conns:    make([]*grpc.ClientConn, 0, len(peers)),
	}

	for name, addr := range peers {

		conn, err := grpc.Dial(addr, opts...)
		if err != nil {
			sender.Close()
			return nil, errors.Wrapf(err, "preparing connection to peer %s at %s failed", name, addr)
		}

		sender.names = append(sender.names, name)
		sender.peers[name] = NewReceiverClient(conn)
		sender.conns = append(sender.conns, conn)
	}

	sort.Strings(sender.names)

	return sender, nil
}

// Run performs a sync round every interval until ctx
// is done. Failed peers are logged and retried in the
// next round.
func (sender *Sender) Run(ctx context.Context) {

	ticker := time.NewTicker(sender.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:

			err := sender.SyncOnce(ctx)
			if err != nil {
				level.Warn(sender.logger).Log(
					"msg", "sync round incomplete",
					"err", err,
				)
			}
		}
	}
}

// SyncOnce pushes the local state to every peer and
// merges the state each peer returns on pull. Errors
// of all peers are combined into the returned one.
func (sender *Sender) SyncOnce(ctx context.Context) error {

	var result error

	for _, name := range sender.names {

		err := sender.syncPeer(ctx, name)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "syncing with %s failed", name))
		}
	}

	return result
}

func (sender *Sender) syncPeer(ctx context.Context, name string) error {

	ctx, cancel := context.WithTimeout(ctx, sender.timeout)
	defer cancel()

	client := sender.peers[name]
	self := sender.replica.Name()

	conf, err := client.Push(ctx, NewStateMsg(self, sender.replica.State()))
	if err != nil {
		return errors.Wrap(err, "push")
	}

	msg, err := client.Pull(ctx, &PullReq{Replica: self})
	if err != nil {
		return errors.Wrap(err, "pull")
	}

	changed := sender.replica.Merge(msg.State())

	level.Debug(sender.logger).Log(
		"msg", "synced with peer",
		"peer", name,
		"peer_changed", conf.Changed,
		"local_changed", changed,
	)

	return nil
}

// Close tears down all peer connections.
func (sender *Sender) Close() error {

	var result error

	for _, conn := range sender.conns {

		if err := conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result
}
