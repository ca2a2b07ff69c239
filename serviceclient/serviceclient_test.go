package serviceclient_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/serviceclient"
	"github.com/momentics/netasync/serviceserver"
)

func identityDecode(b []byte) (string, error) { return string(b), nil }
func identityEncode(s string) ([]byte, error) { return []byte(s), nil }

func TestAsyncCallRoundTrip(t *testing.T) {
	exec := executor.New(4)
	defer exec.Stop()

	srv := serviceserver.New[string, string](exec, 0, 256, identityDecode, identityEncode)
	srv.Advertise(func(addr net.Addr, req string) string {
		return "echo:" + req
	}, time.Second, time.Second)
	defer srv.Cancel()

	addr, ok := srv.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatal("expected a TCP address once Advertise starts accepting")
	}

	client := serviceclient.New[string, string](exec, 256, identityEncode, identityDecode)
	done := make(chan struct{})

	client.AsyncCall("ping", "127.0.0.1", uint16(addr.Port), 2*time.Second, func(err *aerr.Error, resp string) {
		if !aerr.IsSuccess(err) {
			t.Errorf("unexpected error: %v", err)
		}
		if resp != "echo:ping" {
			t.Errorf("got %q, want %q", resp, "echo:ping")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("call never completed")
	}
}

func TestAsyncCallReportsFailedOperationOnConnectError(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	// Nothing listens here: a freshly bound-then-closed ephemeral port
	// is guaranteed refused rather than merely slow.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	client := serviceclient.New[string, string](exec, 256, identityEncode, identityDecode)
	done := make(chan struct{})

	client.AsyncCall("ping", "127.0.0.1", uint16(addr.Port), 2*time.Second, func(err *aerr.Error, resp string) {
		if err == nil || err.Kind != aerr.FailedOperation {
			t.Errorf("expected FailedOperation, got %v", err)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("call never completed")
	}
}

func TestAsyncCallEncodingFailurePostsAsynchronously(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	encodeErr := func(s string) ([]byte, error) { return nil, errEncodingFailed }
	client := serviceclient.New[string, string](exec, 256, encodeErr, identityDecode)

	called := false
	done := make(chan struct{})
	client.AsyncCall("ping", "127.0.0.1", 9, time.Second, func(err *aerr.Error, resp string) {
		called = true
		if err == nil || err.Kind != aerr.Encoding {
			t.Errorf("expected Encoding, got %v", err)
		}
		close(done)
	})
	if called {
		t.Error("handler must not be invoked synchronously from AsyncCall")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

var errEncodingFailed = &encodeFailure{}

type encodeFailure struct{}

func (*encodeFailure) Error() string { return "encode failed" }
