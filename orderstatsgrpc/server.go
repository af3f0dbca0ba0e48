// Package orderstatsgrpc serves estimators over gRPC. Clients create named sessions, each hosting one estimator, then
// stream values into them and query their results. Messages are JSON encoded under the "json" content subtype.
package orderstatsgrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/orderstats-go/orderstats/dispatch"
	"github.com/orderstats-go/orderstats/kll"
	"github.com/orderstats-go/orderstats/psquare"
	"github.com/orderstats-go/orderstats/window"
)

// ErrSessionNotFound is returned when a request names a session that does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when creating a session whose name is already in use.
var ErrSessionExists = errors.New("session already exists")

// ErrInvalidName is returned when a request does not name a session.
var ErrInvalidName = errors.New("session name must not be empty")

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "orderstats.v1.OrderStats"

// OrderStatsServer is the server API for the OrderStats service.
type OrderStatsServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Update(context.Context, *UpdateRequest) (*Table, error)
	Value(context.Context, *ValueRequest) (*Table, error)
	Quantile(context.Context, *QuantileRequest) (*QuantileResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

type session struct {
	mu    sync.Mutex
	table dispatch.Table
}

// Server hosts named estimator sessions. Requests against the same session are serialized, and requests across
// sessions run concurrently up to the configured limit.
//
// This type is concurrency safe.
type Server struct {
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu       sync.RWMutex
	sessions map[string]*session
}

var _ OrderStatsServer = &Server{}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMaxConcurrency limits the number of requests that are handled concurrently. Additional requests wait for a slot
// until their context is done.
func WithMaxConcurrency(n int64) ServerOption {
	return func(s *Server) {
		s.sem = semaphore.NewWeighted(n)
	}
}

// WithLogger configures a logger which provides debug logging of session lifecycle events.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer returns a new Server with no sessions. By default, concurrency is limited to 64 requests.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		sem:      semaphore.NewWeighted(64),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register registers the server's service with the registrar.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&serviceDesc, s)
}

func (s *Server) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if req.Name == "" {
		return nil, toStatus(ErrInvalidName)
	}
	kind, err := dispatch.ParseKind(req.Kind)
	if err != nil {
		return nil, toStatus(err)
	}
	table, err := dispatch.New(kind, dispatch.Params{
		Window:      req.Window,
		Ranks:       req.Ranks,
		Probs:       req.Probs,
		K:           req.K,
		C:           req.C,
		Eager:       req.Eager,
		Alternating: req.Alternating,
		Seed:        req.Seed,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[req.Name]; ok {
		return nil, toStatus(fmt.Errorf("%q: %w", req.Name, ErrSessionExists))
	}
	s.sessions[req.Name] = &session{table: table}
	s.debug(ctx, "session created", "name", req.Name, "kind", kind)
	return &CreateResponse{Columns: table.Columns()}, nil
}

func (s *Server) Update(ctx context.Context, req *UpdateRequest) (*Table, error) {
	var result *Table
	err := s.withSession(ctx, req.Name, func(table dispatch.Table) error {
		result = &Table{
			Columns: table.Columns(),
			Rows:    toRows(table.Update(req.Values)),
		}
		return nil
	})
	return result, err
}

func (s *Server) Value(ctx context.Context, req *ValueRequest) (*Table, error) {
	var result *Table
	err := s.withSession(ctx, req.Name, func(table dispatch.Table) error {
		result = &Table{
			Columns: table.Columns(),
			Rows:    toRows(table.Value()),
		}
		return nil
	})
	return result, err
}

func (s *Server) Quantile(ctx context.Context, req *QuantileRequest) (*QuantileResponse, error) {
	var result *QuantileResponse
	err := s.withSession(ctx, req.Name, func(table dispatch.Table) error {
		values, err := table.Quantile(req.Probs)
		if err != nil {
			return err
		}
		result = &QuantileResponse{Values: values}
		return nil
	})
	return result, err
}

func (s *Server) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[req.Name]; !ok {
		return nil, toStatus(fmt.Errorf("%q: %w", req.Name, ErrSessionNotFound))
	}
	delete(s.sessions, req.Name)
	s.debug(ctx, "session deleted", "name", req.Name)
	return &DeleteResponse{}, nil
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// withSession runs fn against the named session's table while holding the session's lock.
func (s *Server) withSession(ctx context.Context, name string, fn func(dispatch.Table) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)

	s.mu.RLock()
	sess, ok := s.sessions[name]
	s.mu.RUnlock()
	if !ok {
		return toStatus(fmt.Errorf("%q: %w", name, ErrSessionNotFound))
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := fn(sess.table); err != nil {
		return toStatus(err)
	}
	return nil
}

func (s *Server) acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}

func (s *Server) debug(ctx context.Context, msg string, args ...any) {
	if s.logger != nil && s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.DebugContext(ctx, msg, args...)
	}
}

// toStatus maps estimator and session errors to gRPC status errors.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrSessionExists):
		code = codes.AlreadyExists
	case errors.Is(err, kll.ErrEmpty):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, dispatch.ErrUnknownKind),
		errors.Is(err, dispatch.ErrUnsupported),
		errors.Is(err, window.ErrInvalidWindow),
		errors.Is(err, window.ErrInvalidRank),
		errors.Is(err, psquare.ErrInvalidProbability),
		errors.Is(err, kll.ErrInvalidK),
		errors.Is(err, kll.ErrInvalidC),
		errors.Is(err, kll.ErrInvalidProbability):
		code = codes.InvalidArgument
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(OrderStatsServer, context.Context, *Req) (*Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderStatsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderStatsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderStatsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: unaryHandler("Create", OrderStatsServer.Create)},
		{MethodName: "Update", Handler: unaryHandler("Update", OrderStatsServer.Update)},
		{MethodName: "Value", Handler: unaryHandler("Value", OrderStatsServer.Value)},
		{MethodName: "Quantile", Handler: unaryHandler("Quantile", OrderStatsServer.Quantile)},
		{MethodName: "Delete", Handler: unaryHandler("Delete", OrderStatsServer.Delete)},
	},
	Streams: []grpc.StreamDesc{},
}
