package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

const DefaultPort = 50051

type Option func(*Options)

type Options struct {
	host         string
	port         int
	listener     net.Listener
	logger       *zap.Logger
	reflection   bool
	logging      bool
	recovery     bool
	keepalive    *keepalive.ServerParameters
	interceptors []grpc.UnaryServerInterceptor
}

func WithHost(host string) Option {
	return func(o *Options) { o.host = host }
}

// WithPort sets the TCP port. Port 0 picks a free port, see Addr.
func WithPort(port int) Option {
	return func(o *Options) { o.port = port }
}

// WithListener serves on an existing listener; host and port are ignored.
func WithListener(lis net.Listener) Option {
	return func(o *Options) { o.listener = lis }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

func WithReflection(enabled bool) Option {
	return func(o *Options) { o.reflection = enabled }
}

func WithLogging(enabled bool) Option {
	return func(o *Options) { o.logging = enabled }
}

// WithRecovery turns handler panics into codes.Internal. On by default.
func WithRecovery(enabled bool) Option {
	return func(o *Options) { o.recovery = enabled }
}

// WithKeepalive closes idle client connections per params.
func WithKeepalive(params keepalive.ServerParameters) Option {
	return func(o *Options) { o.keepalive = &params }
}

// WithUnaryInterceptors appends interceptors after the recovery and logging ones.
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) Option {
	return func(o *Options) { o.interceptors = append(o.interceptors, interceptors...) }
}

// Server owns a grpc.Server, its listener and the standard health service.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	lis        net.Listener
	logger     *zap.Logger
}

func (o *Options) listen() (net.Listener, error) {
	if o.listener != nil {
		return o.listener, nil
	}
	if o.port < 0 || o.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 0 and 65535", o.port)
	}
	addr := net.JoinHostPort(o.host, fmt.Sprint(o.port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return lis, nil
}

func (o *Options) serverOptions(logger *zap.Logger) []grpc.ServerOption {
	// recovery goes first so it also catches panics raised by later interceptors
	var chain []grpc.UnaryServerInterceptor
	if o.recovery {
		chain = append(chain, RecoveryInterceptor(logger))
	}
	if o.logging {
		chain = append(chain, LoggingInterceptor(logger))
	}
	chain = append(chain, o.interceptors...)

	var opts []grpc.ServerOption
	if len(chain) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(chain...))
	}
	if o.keepalive != nil {
		opts = append(opts, grpc.KeepaliveParams(*o.keepalive))
	}
	return opts
}

// New opens the listener and builds the server. Nothing is served until Start.
func New(opts ...Option) (*Server, error) {
	o := &Options{port: DefaultPort, recovery: true}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lis, err := o.listen()
	if err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer(o.serverOptions(logger)...)
	if o.reflection {
		reflection.Register(grpcServer)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer: grpcServer,
		health:     hs,
		lis:        lis,
		logger:     logger.Named("grpc-server"),
	}, nil
}

// Register adds a service implementation and reports desc.ServiceName as SERVING.
func (s *Server) Register(desc *grpc.ServiceDesc, impl any) {
	s.grpcServer.RegisterService(desc, impl)
	s.health.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("registered service", zap.String("service", desc.ServiceName), zap.Int("methods", len(desc.Methods)))
}

// SetServiceHealth updates the health status of a specific service.
func (s *Server) SetServiceHealth(serviceName string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(serviceName, status)
	s.logger.Info("updated service health",
		zap.String("service", serviceName),
		zap.String("status", status.String()))
}

// Start serves in the background. The returned channel yields the serve error,
// if any, and is closed once serving stops. A graceful stop yields nothing.
func (s *Server) Start() <-chan error {
	s.logger.Info("gRPC server starting", zap.String("addr", s.lis.Addr().String()))

	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		if err := s.grpcServer.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- err
		}
	}()
	return errc
}

// Shutdown marks every service NOT_SERVING, then stops gracefully until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("forced shutdown due to timeout")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}
