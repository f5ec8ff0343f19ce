// Package grpctransport is a transport.Transport over gRPC, generalizing
// the teacher's GRPCTransport (client-cache with lazy dial and
// reconnect-on-failure) to the engine's single Send/Inbox shape.
package grpctransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/AbyelT/omnipaxos/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type transportService struct {
	inbox chan transport.Envelope
}

func (s *transportService) Send(ctx context.Context, in *wireEnvelope) (*wireAck, error) {
	env := transport.Envelope{From: in.From, Payload: in.Payload}
	select {
	case s.inbox <- env:
		return &wireAck{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type peerClient struct {
	conn   *grpc.ClientConn
	client TransportClient
}

// GRPCTransport is a transport.Transport backed by a gRPC server plus a
// lazily-dialed, cached client per peer.
type GRPCTransport struct {
	pid     uint64
	peers   map[uint64]string // pid -> dial address
	logger  *zap.SugaredLogger
	service *transportService
	server  *grpc.Server

	listener  net.Listener
	serveFlag uint32

	clientsMu sync.RWMutex
	clients   map[uint64]*peerClient
}

// New returns a GRPCTransport listening on listenAddr for pid, able to dial
// the given peer address table.
func New(pid uint64, listenAddr string, peers map[uint64]string, bufferSize int, logger *zap.SugaredLogger) (*GRPCTransport, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: listen: %w", err)
	}
	return &GRPCTransport{
		pid:      pid,
		peers:    peers,
		logger:   logger,
		service:  &transportService{inbox: make(chan transport.Envelope, bufferSize)},
		listener: listener,
		clients:  map[uint64]*peerClient{},
	}, nil
}

// Serve blocks, accepting connections until Close is called. Must only be
// called once.
func (t *GRPCTransport) Serve() error {
	if !atomic.CompareAndSwapUint32(&t.serveFlag, 0, 1) {
		panic("grpctransport: Serve called more than once")
	}
	t.server = grpc.NewServer()
	RegisterTransportServer(t.server, t.service)
	t.logger.Infow("transport listening", "pid", t.pid, "addr", t.listener.Addr())
	return t.server.Serve(t.listener)
}

// Close tears down all outbound connections and stops the server.
func (t *GRPCTransport) Close() error {
	t.clientsMu.Lock()
	for pid, c := range t.clients {
		c.conn.Close()
		delete(t.clients, pid)
	}
	t.clientsMu.Unlock()
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

func (t *GRPCTransport) connectLocked(to uint64) (*peerClient, error) {
	if c, ok := t.clients[to]; ok {
		return c, nil
	}
	addr, ok := t.peers[to]
	if !ok {
		return nil, fmt.Errorf("grpctransport: no dial address for pid %d", to)
	}
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c := &peerClient{conn: conn, client: NewTransportClient(conn)}
	t.clients[to] = c
	return c, nil
}

func (t *GRPCTransport) disconnectLocked(to uint64) {
	if c, ok := t.clients[to]; ok {
		delete(t.clients, to)
		c.conn.Close()
	}
}

// Send delivers payload to pid to, reconnecting once on a shut-down
// connection before giving up. Each attempt is tagged with a trace id so
// a retried send can be correlated with its failed predecessor in logs.
func (t *GRPCTransport) Send(ctx context.Context, to uint64, payload []byte) error {
	traceID := uuid.NewString()

	t.clientsMu.Lock()
	client, err := t.connectLocked(to)
	t.clientsMu.Unlock()
	if err != nil {
		return err
	}

	_, err = client.client.Send(ctx, &wireEnvelope{From: t.pid, Payload: payload})
	if err == nil {
		return nil
	}
	if !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	t.logger.Debugw("send failed, reconnecting", "trace_id", traceID, "to", to, "error", err)

	t.clientsMu.Lock()
	t.disconnectLocked(to)
	client, reconnectErr := t.connectLocked(to)
	t.clientsMu.Unlock()
	if reconnectErr != nil {
		return reconnectErr
	}
	_, err = client.client.Send(ctx, &wireEnvelope{From: t.pid, Payload: payload})
	return err
}

// Inbox returns the channel deliveries from peers arrive on.
func (t *GRPCTransport) Inbox() <-chan transport.Envelope {
	return t.service.inbox
}

var _ transport.Transport = (*GRPCTransport)(nil)
