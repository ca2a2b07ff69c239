package serviceserver_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/frame"
	"github.com/momentics/netasync/serviceserver"
)

func identityDecode(b []byte) (string, error) { return string(b), nil }
func identityEncode(s string) ([]byte, error) { return []byte(s), nil }

func TestAdvertiseAnswersRequest(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	srv := serviceserver.New[string, string](exec, 0, 256, identityDecode, identityEncode)
	srv.Advertise(func(addr net.Addr, req string) string {
		return "echo:" + req
	}, time.Second, time.Second)
	defer srv.Cancel()

	addr := srv.Addr()
	if addr == nil {
		t.Fatal("expected a bound address once Advertise starts accepting")
	}

	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(frame.Encode([]byte("hi"))); err != nil {
		t.Fatalf("write request: %v", err)
	}

	hdr := make([]byte, frame.HeaderSize)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		t.Fatalf("read response header: %v", err)
	}
	n, err := frame.DecodeHeader(hdr)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if string(body) != "echo:hi" {
		t.Errorf("got %q, want %q", body, "echo:hi")
	}
}

func TestAdvertiseDropsConnectionOnMalformedRequest(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	srv := serviceserver.New[string, string](exec, 0, 256, identityDecode, identityEncode)
	srv.Advertise(func(addr net.Addr, req string) string {
		return "unreachable"
	}, 200*time.Millisecond, time.Second)
	defer srv.Cancel()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// A header declaring more bytes than ever arrive: the server's read
	// times out and drops the connection without answering.
	hdr := frame.EncodeHeader(64)
	if _, err := conn.Write(hdr[:]); err != nil {
		t.Fatalf("write truncated header: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Error("expected the connection to be closed without a response")
	}
}
