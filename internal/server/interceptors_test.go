package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func TestAuthInterceptor(t *testing.T) {
	const other = "/parceltrack.v1.Admin/Reload"
	for _, tc := range []struct {
		name     string
		token    string
		method   string
		md       metadata.MD
		wantCode codes.Code
	}{
		{"Disabled", "", other, nil, codes.OK},
		{"HealthExempt", "secret", "/grpc.health.v1.Health/Check", nil, codes.OK},
		{"MissingMetadata", "secret", other, nil, codes.Unauthenticated},
		{"MissingAuthHeader", "secret", other, metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"WrongToken", "secret", other, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", other, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", other, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			resp, err := AuthInterceptor(tc.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if got := status.Code(err); got != tc.wantCode {
				t.Fatalf("code = %v, want %v (err=%v)", got, tc.wantCode, err)
			}
			if tc.wantCode == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}
		})
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	panicky := func(context.Context, any) (any, error) { panic("boom") }
	_, err := RecoveryInterceptor(logger)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, panicky)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
	if !strings.Contains(buf.String(), "panic=boom") || !strings.Contains(buf.String(), "method=/x/y") {
		t.Errorf("log = %q", buf.String())
	}
}

// fakeServerStream carries an incoming context for stream interceptor tests.
type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ran := false
	handler := func(any, grpc.ServerStream) error { ran = true; return nil }
	reflectionInfo := &grpc.StreamServerInfo{FullMethod: "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"}

	noToken := &fakeServerStream{ctx: context.Background()}
	if err := StreamAuthInterceptor("secret")(nil, noToken, reflectionInfo, handler); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("reflection without token: %v", err)
	}
	if ran {
		t.Fatal("handler ran without a token")
	}

	watch := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}
	if err := StreamAuthInterceptor("secret")(nil, noToken, watch, handler); err != nil || !ran {
		t.Fatalf("health watch: err=%v ran=%v", err, ran)
	}

	ran = false
	withToken := &fakeServerStream{ctx: metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer secret"))}
	if err := StreamAuthInterceptor("secret")(nil, withToken, reflectionInfo, handler); err != nil || !ran {
		t.Fatalf("reflection with token: err=%v ran=%v", err, ran)
	}

	panicky := func(any, grpc.ServerStream) error { panic("boom") }
	if err := StreamRecoveryInterceptor(logger)(nil, noToken, watch, panicky); status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resp, err := LoggingInterceptor(logger)(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, stubHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, tc := range []struct {
		name   string
		token  string
		path   string
		header string
		want   int
	}{
		{"NoHeader", "secret", "/v1/parcel-item-events", "", http.StatusUnauthorized},
		{"WrongToken", "secret", "/v1/parcel-item-events", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", "/v1/parcel-item-events", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", "/v1/parcel-item-events", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", "/v1/health", "", http.StatusOK},
		{"Disabled", "", "/v1/stats", "", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d; body: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
