package grpcapi

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lemonberrylabs/kolon/pkg/kolon"
	"github.com/lemonberrylabs/kolon/pkg/loader"
	"github.com/lemonberrylabs/kolon/pkg/store"
)

func startTestServer(t *testing.T) (string, string, func()) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.tx"), []byte("Hi <: name :>\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.tx"), []byte("\n\n<: 1 & 2 :>"), 0o644); err != nil {
		t.Fatal(err)
	}

	syn := kolon.New(kolon.DefaultConfig())
	l, err := loader.New([]string{dir}, store.New(), syn)
	if err != nil {
		t.Fatalf("loader.New: %v", err)
	}
	srv := New(l, syn)

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.ServeListener(lis)

	return lis.Addr().String(), dir, func() {
		srv.Stop()
	}
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, req map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	out := new(structpb.Struct)
	err = conn.Invoke(context.Background(), method, in, out)
	return out, err
}

func tokenTypes(resp *structpb.Struct) []string {
	var types []string
	for _, v := range resp.GetFields()["tokens"].GetListValue().GetValues() {
		types = append(types, v.GetStructValue().GetFields()["type"].GetStringValue())
	}
	return types
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHealthCheck(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status: %v", resp.GetStatus())
	}
}

func TestTokenize(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	resp, err := invoke(t, conn, TokenizeMethod, map[string]interface{}{
		"source": "a\n: if x == 1 {\n",
	})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	want := []string{"RAW", "IF", "IDENT", "EQUALEQUAL", "INTEGER", "LBRACE"}
	if got := tokenTypes(resp); !equalStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	first := resp.GetFields()["tokens"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	if first["text"].GetStringValue() != "a\n" {
		t.Errorf("got raw text %q", first["text"].GetStringValue())
	}
	second := resp.GetFields()["tokens"].GetListValue().GetValues()[1].GetStructValue().GetFields()
	if second["line"].GetNumberValue() != 2 {
		t.Errorf("got line %v, want 2", second["line"].GetNumberValue())
	}
	if _, ok := second["text"]; ok {
		t.Error("keyword tokens should carry no text")
	}
}

func TestTokenizeCustomSyntax(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	resp, err := invoke(t, conn, TokenizeMethod, map[string]interface{}{
		"source":    "{{ x }}",
		"open_tag":  "{{",
		"close_tag": "}}",
	})
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if got := tokenTypes(resp); !equalStrings(got, []string{"OPEN", "IDENT", "CLOSE"}) {
		t.Fatalf("unexpected tokens %v", got)
	}

	_, err = invoke(t, conn, TokenizeMethod, map[string]interface{}{
		"source":    "x",
		"open_tag":  "%%",
		"close_tag": "%%",
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestTokenizeError(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	_, err := invoke(t, conn, TokenizeMethod, map[string]interface{}{
		"source": "x\n<: \"abc",
	})
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.GetReason() != "UnterminatedString" || info.GetMetadata()["line"] != "2" {
		t.Errorf("unexpected error info %v", info)
	}
}

func TestCompile(t *testing.T) {
	addr, dir, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	resp, err := invoke(t, conn, CompileMethod, map[string]interface{}{"name": "hello.tx"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	fields := resp.GetFields()
	if fields["id"].GetStringValue() == "" {
		t.Error("expected entry id")
	}
	if fields["path"].GetStringValue() != filepath.Join(dir, "hello.tx") {
		t.Errorf("got path %q", fields["path"].GetStringValue())
	}
	want := []string{"RAW", "OPEN", "IDENT", "CLOSE", "RAW"}
	if got := tokenTypes(resp); !equalStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	again, err := invoke(t, conn, CompileMethod, map[string]interface{}{"name": "hello.tx"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if again.GetFields()["id"].GetStringValue() != fields["id"].GetStringValue() {
		t.Error("second compile should be served from the cache")
	}
}

func TestCompileErrors(t *testing.T) {
	addr, dir, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	tests := []struct {
		name     string
		req      map[string]interface{}
		wantCode codes.Code
	}{
		{"missing name", map[string]interface{}{}, codes.InvalidArgument},
		{"not found", map[string]interface{}{"name": "nope.tx"}, codes.NotFound},
		{"lex error", map[string]interface{}{"name": "bad.tx"}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, conn, CompileMethod, tt.req)
			if status.Code(err) != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}

	_, err := invoke(t, conn, CompileMethod, map[string]interface{}{"name": "bad.tx"})
	st, _ := status.FromError(err)
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			if ei.GetReason() != "InvalidOperator" || ei.GetMetadata()["line"] != "3" {
				t.Errorf("unexpected error info %v", ei)
			}
			if ei.GetMetadata()["file"] != filepath.Join(dir, "bad.tx") {
				t.Errorf("got file %q", ei.GetMetadata()["file"])
			}
		}
	}
}
