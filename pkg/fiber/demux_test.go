package fiber

import (
	"context"
	"net"
	"testing"
	"time"
)

func newPairedDemultiplexers() (*Demultiplexer, *Demultiplexer) {
	clientConn, serverConn := net.Pipe()
	client := NewDemultiplexer(NewCarrierFromStream(clientConn), nil)
	server := NewDemultiplexer(NewCarrierFromStream(serverConn), nil)
	return client, server
}

func TestConnectAccept(t *testing.T) {
	client, server := newPairedDemultiplexers()
	defer client.Close()
	defer server.Close()

	listener, err := server.Listen(100)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	acceptResultCh := make(chan *StreamFiber, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		accepted, err := listener.Accept(ctx)
		acceptResultCh <- accepted
		acceptErrCh <- err
	}()

	clientStream, err := client.Connect(ctx, 0, 100)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if clientStream.RemotePort() != 100 {
		t.Errorf("RemotePort: got %d, want 100", clientStream.RemotePort())
	}

	accepted := <-acceptResultCh
	if err := <-acceptErrCh; err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if accepted.LocalPort() != 100 {
		t.Errorf("accepted LocalPort: got %d, want 100", accepted.LocalPort())
	}
}

func TestStreamReadWrite(t *testing.T) {
	client, server := newPairedDemultiplexers()
	defer client.Close()
	defer server.Close()

	listener, err := server.Listen(200)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	acceptedCh := make(chan *StreamFiber, 1)
	go func() {
		accepted, err := listener.Accept(ctx)
		if err != nil {
			t.Errorf("Accept failed: %v", err)
			return
		}
		acceptedCh <- accepted
	}()

	clientStream, err := client.Connect(ctx, 0, 200)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	serverStream := <-acceptedCh

	message := []byte("the quick brown fox")
	writeDone := make(chan error, 1)
	go func() {
		_, err := clientStream.Write(ctx, message)
		writeDone <- err
	}()

	received := make([]byte, len(message))
	total := 0
	for total < len(received) {
		n, err := serverStream.Read(ctx, received[total:])
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		total += n
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(received) != string(message) {
		t.Errorf("received %q, want %q", received, message)
	}
}

func TestConnectRefused(t *testing.T) {
	client, server := newPairedDemultiplexers()
	defer client.Close()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.Connect(ctx, 0, 999)
	if err != ErrConnectionRefused {
		t.Fatalf("expected ErrConnectionRefused, got %v", err)
	}
}

func TestDatagramSendReceive(t *testing.T) {
	client, server := newPairedDemultiplexers()
	defer client.Close()
	defer server.Close()

	serverDatagram, err := server.BindDatagram(300)
	if err != nil {
		t.Fatalf("BindDatagram failed: %v", err)
	}
	clientDatagram, err := client.BindDatagram(0)
	if err != nil {
		t.Fatalf("BindDatagram failed: %v", err)
	}

	if err := clientDatagram.SendTo(300, []byte("ping")); err != nil {
		t.Fatalf("SendTo failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	buffer := make([]byte, 64)
	n, sender, err := serverDatagram.ReceiveFrom(ctx, buffer)
	if err != nil {
		t.Fatalf("ReceiveFrom failed: %v", err)
	}
	if string(buffer[:n]) != "ping" {
		t.Errorf("got %q, want %q", buffer[:n], "ping")
	}
	if sender != clientDatagram.LocalPort() {
		t.Errorf("sender port: got %d, want %d", sender, clientDatagram.LocalPort())
	}
}
