package comm

import (
	"time"

	"crypto/tls"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/keepalive"
)

// Set the maximum number of bytes a message is allowed to
// carry to (256 * 1024 * 1024 B) + 2048 B (buffer) > 256 MiB.
// Symmetric - send and receive option.
var maxMsgSize = 268437504

// ReceiverOptions returns a list of gRPC server
// options that the receiver uses for RPCs. A nil
// tlsConfig leaves the connection unencrypted.
func ReceiverOptions(tlsConfig *tls.Config) []grpc.ServerOption {

	creds := insecure.NewCredentials()
	if tlsConfig != nil {
		creds = credentials.NewTLS(tlsConfig)
	}

	enfPolicy := keepalive.EnforcementPolicy{
		// Clients connecting to this receiver should wait
		// at least 30 seconds before sending a keepalive.
		MinTime: 30 * time.Second,
		// Expect keepalives even when no streams are active.
		PermitWithoutStream: true,
	}

	kaParams := keepalive.ServerParameters{
		// The receiver will ping the other node after
		// 30 seconds of inactivity for keepalive.
		Time: 30 * time.Second,
		// If no response to such keepalive ping is received
		// after 20 seconds, the connection is closed.
		Timeout: 20 * time.Second,
	}

	return []grpc.ServerOption{
		grpc.Creds(creds),
		grpc.ForceServerCodec(Codec{}),
		grpc.KeepaliveEnforcementPolicy(enfPolicy),
		grpc.KeepaliveParams(kaParams),
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	}
}

// SenderOptions defines gRPC options for connection
// attempts from a sender to a receiver.
func SenderOptions(tlsConfig *tls.Config) []grpc.DialOption {

	// These call options will be used for every call
	// via this connection.
	callOpts := []grpc.CallOption{
		// Messages are JSON and GZIP-compressed.
		grpc.ForceCodec(Codec{}),
		grpc.UseCompressor(gzip.Name),
		// Set maximum receive and send sizes.
		grpc.MaxCallRecvMsgSize(maxMsgSize),
		grpc.MaxCallSendMsgSize(maxMsgSize),
	}

	kaParams := keepalive.ClientParameters{
		// The client will ping the other node after
		// 30 seconds of inactivity for keepalive.
		Time: 30 * time.Second,
		// If no response to such keepalive ping is received
		// after 20 seconds, the connection is closed.
		Timeout: 20 * time.Second,
		// Expect keepalives even when no streams are active.
		PermitWithoutStream: true,
	}

	backoffConf := backoff.DefaultConfig
	backoffConf.MaxDelay = 8 * time.Second

	creds := insecure.NewCredentials()
	if tlsConfig != nil {
		creds = credentials.NewTLS(tlsConfig)
	}

	return []grpc.DialOption{
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoffConf,
			MinConnectTimeout: 20 * time.Second,
		}),
		grpc.WithDefaultCallOptions(callOpts...),
		grpc.WithKeepaliveParams(kaParams),
		grpc.WithTransportCredentials(creds),
	}
}
