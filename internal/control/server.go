// Package control serves the local control socket of a running client: the
// standard gRPC health service, reporting SERVING while the real-time
// connection is online.
package control

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TransportService is the health service name tracking the real-time
// connection. The empty name reports the same status.
const TransportService = "nexus.transport"

// Server manages the gRPC server bound to a session's control socket.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger

	events <-chan bus.Event
	unsub  func()
	done   chan struct{}
}

// NewServer binds socketPath and seeds the health status from machine.
func NewServer(socketPath string, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*Server, error) {
	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
		done:       make(chan struct{}),
	}
	// Subscribe before reading the current state so no change is missed.
	s.events, s.unsub = b.Subscribe(bus.ConnectionChanged, 16)
	s.set(machine.Current())
	return s, nil
}

// ServingStatus maps a connection state to a health status.
func ServingStatus(st status.State) healthpb.HealthCheckResponse_ServingStatus {
	if st == status.Online {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

func (s *Server) set(st status.State) {
	v := ServingStatus(st)
	s.health.SetServingStatus("", v)
	s.health.SetServingStatus(TransportService, v)
}

func (s *Server) watch() {
	for {
		select {
		case evt := <-s.events:
			if c, ok := evt.Payload.(status.StatusChange); ok {
				s.set(c.To)
			}
		case <-s.done:
			return
		}
	}
}

// Start begins serving. Blocks until stopped.
func (s *Server) Start() error {
	go s.watch()
	s.logger.Info("control server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("control server stopping")
	s.unsub()
	close(s.done)
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = os.Remove(s.socketPath)
}
