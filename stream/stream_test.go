package stream_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/frame"
	"github.com/momentics/netasync/stream"
)

func TestWriteReadRoundTrip(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	clientRaw, serverRaw := net.Pipe()
	client := stream.NewConn(clientRaw)
	server := stream.NewConn(serverRaw)
	defer client.Close()
	defer server.Close()

	payload := []byte("hello, netasync")
	readDone := make(chan struct{})

	stream.AsyncRead(exec, server, 1024, time.Second, func(err *aerr.Error, got []byte) {
		if !aerr.IsSuccess(err) {
			t.Errorf("unexpected error: %v", err)
		}
		if string(got) != string(payload) {
			t.Errorf("got %q, want %q", got, payload)
		}
		close(readDone)
	})

	writeDone := make(chan struct{})
	stream.AsyncWrite(exec, client, payload, time.Second, func(err *aerr.Error) {
		if !aerr.IsSuccess(err) {
			t.Errorf("write failed: %v", err)
		}
		close(writeDone)
	})

	select {
	case <-writeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("write never completed")
	}
	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("read never completed")
	}
}

func TestReadZeroLengthFrame(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	clientRaw, serverRaw := net.Pipe()
	client := stream.NewConn(clientRaw)
	server := stream.NewConn(serverRaw)
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	stream.AsyncRead(exec, server, 1024, time.Second, func(err *aerr.Error, payload []byte) {
		if !aerr.IsSuccess(err) {
			t.Errorf("expected success, got %v", err)
		}
		if payload != nil {
			t.Errorf("expected nil payload for a zero-length frame, got %v", payload)
		}
		close(done)
	})

	stream.AsyncWrite(exec, client, nil, time.Second, func(err *aerr.Error) {
		if !aerr.IsSuccess(err) {
			t.Errorf("write failed: %v", err)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read never completed")
	}
}

func TestReadRejectsOversizedFrame(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	clientRaw, serverRaw := net.Pipe()
	client := stream.NewConn(clientRaw)
	server := stream.NewConn(serverRaw)
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	stream.AsyncRead(exec, server, 4, time.Second, func(err *aerr.Error, payload []byte) {
		if err == nil || err.Kind != aerr.InvalidFrame {
			t.Errorf("expected InvalidFrame, got %v", err)
		}
		close(done)
	})

	go func() {
		encoded := frame.Encode(make([]byte, 64))
		_, _ = clientRaw.Write(encoded)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read never completed")
	}
}

func TestReadTimeoutReportsAbortedAndClosesConn(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()

	_, serverRaw := net.Pipe()
	server := stream.NewConn(serverRaw)

	done := make(chan struct{})
	stream.AsyncRead(exec, server, 1024, 15*time.Millisecond, func(err *aerr.Error, payload []byte) {
		if err == nil || err.Kind != aerr.Aborted {
			t.Errorf("expected Aborted, got %v", err)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read never completed")
	}
	if server.IsOpen() {
		t.Error("expected conn to be closed on timeout")
	}
}
