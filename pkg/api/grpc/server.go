// Package grpcapi implements the kolon.v1.Lexer gRPC service. Requests and
// responses are google.protobuf.Struct messages, so clients need no generated
// stubs; the standard gRPC health service is registered alongside.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lemonberrylabs/kolon/pkg/kolon"
	"github.com/lemonberrylabs/kolon/pkg/loader"
	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/token"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

// Service and method names.
const (
	ServiceName    = "kolon.v1.Lexer"
	TokenizeMethod = "/kolon.v1.Lexer/Tokenize"
	CompileMethod  = "/kolon.v1.Lexer/Compile"
)

// LexerServer is the server API for the kolon.v1.Lexer service.
type LexerServer interface {
	Tokenize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Compile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var lexerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LexerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Tokenize", Handler: unaryHandler(TokenizeMethod, LexerServer.Tokenize)},
		{MethodName: "Compile", Handler: unaryHandler(CompileMethod, LexerServer.Compile)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kolon/v1/lexer.proto",
}

func unaryHandler(fullMethod string, call func(LexerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LexerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LexerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server implements the Lexer and Health services.
type Server struct {
	loader *loader.Loader
	syntax *kolon.Kolon
	health *health.Server
	grpc   *grpc.Server
}

// New creates a new gRPC server.
func New(l *loader.Loader, syn *kolon.Kolon) *Server {
	srv := &Server{
		loader: l,
		syntax: syn,
		health: health.NewServer(),
	}

	gs := grpc.NewServer()
	gs.RegisterService(&lexerServiceDesc, srv)
	healthpb.RegisterHealthServer(gs, srv.health)
	srv.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.ServeListener(lis)
}

// ServeListener serves gRPC requests on lis.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop marks the services as not serving and stops the server.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}

// --- Lexer Service ---

// Tokenize tokenizes the "source" field. Optional "open_tag", "close_tag"
// and "code_line_delimiter" fields override the server's delimiters.
func (s *Server) Tokenize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	text := fields["source"].GetStringValue()

	base := s.syntax.Config()
	cfg := kolon.Config{
		OpenTag:           stringField(fields, "open_tag", base.OpenTag),
		CloseTag:          stringField(fields, "close_tag", base.CloseTag),
		CodeLineDelimiter: stringField(fields, "code_line_delimiter", base.CodeLineDelimiter),
	}
	if err := cfg.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	tokens, err := kolon.Tokenize(source.FromString(text), text, cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	return tokensResponse(nil, tokens)
}

// Compile compiles the template named by the "name" field through the loader.
func (s *Server) Compile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.GetFields()["name"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	e, err := s.loader.CompileEntry(filepath.FromSlash(name))
	if err != nil {
		return nil, toStatus(err)
	}
	return tokensResponse(map[string]interface{}{
		"id":   e.ID,
		"name": e.Name,
		"path": e.Path,
	}, e.Opcodes.Tokens)
}

func stringField(fields map[string]*structpb.Value, key, fallback string) string {
	if v := fields[key].GetStringValue(); v != "" {
		return v
	}
	return fallback
}

func tokensResponse(extra map[string]interface{}, tokens []token.Token) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(tokens))
	for _, t := range tokens {
		list = append(list, tokenToMap(t))
	}
	m := map[string]interface{}{"tokens": list}
	for k, v := range extra {
		m[k] = v
	}
	resp, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return resp, nil
}

func tokenToMap(t token.Token) map[string]interface{} {
	m := map[string]interface{}{
		"type": t.Type.String(),
		"line": t.Line,
	}
	if t.Type.HasText() {
		m["text"] = t.Text
	}
	if t.File != "" {
		m["file"] = t.File
	}
	return m
}

// toStatus maps a TemplateError to a gRPC status carrying an ErrorInfo
// detail with the error kind and position.
func toStatus(err error) error {
	var te *types.TemplateError
	if !errors.As(err, &te) {
		return status.Error(codes.Internal, err.Error())
	}

	code := codes.InvalidArgument
	switch {
	case te.HasKind(types.KindTemplateNotFound):
		code = codes.NotFound
	case te.HasKind(types.KindIoError):
		code = codes.Internal
	}

	st := status.New(code, te.Error())
	info := &errdetails.ErrorInfo{
		Reason: string(te.Kind),
		Domain: "kolon",
		Metadata: map[string]string{
			"line": strconv.Itoa(te.Line),
		},
	}
	if te.File != "" {
		info.Metadata["file"] = te.File
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}
