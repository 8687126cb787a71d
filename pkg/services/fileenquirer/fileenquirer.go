// Package fileenquirer implements registry.ServiceFileEnquirer (id 9): a
// single-request/single-reply existence-and-size query used by
// pkg/services/filecopy to skip a transfer whose destination already exists
// with the same size; a partially written destination is not resumed but
// sent again in full. It supplements the file-copy feature pairing present in
// original_source/ (the original's file_enquirer connects to a fixed fiber
// port to exchange input/output patterns before a copy begins; this
// repository generalizes that into a standalone query any file-copy
// transfer can make first).
package fileenquirer

import (
	"context"
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
)

func init() {
	registry.Register(registry.ServiceFileEnquirer, newFileEnquirer)
}

// fileEnquirer accepts fibers on the fixed fiber.FileEnquirerPort, reads a
// single length-prefixed path per fiber, and replies with a 1-byte exists
// flag followed by an 8-byte big-endian size (zero if the path does not
// exist), then closes.
type fileEnquirer struct {
	listener *fiber.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

func newFileEnquirer(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	listener, err := demux.Listen(fiber.FileEnquirerPort)
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind file enquirer fiber listener")
	}
	return &fileEnquirer{listener: listener, stopped: make(chan struct{})}, nil
}

func (f *fileEnquirer) Run(ctx context.Context) error {
	for {
		stream, err := f.listener.Accept(ctx)
		if err != nil {
			select {
			case <-f.stopped:
				return nil
			default:
				return err
			}
		}

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			defer stream.Close()
			f.answer(ctx, stream)
		}()
	}
}

func (f *fileEnquirer) answer(ctx context.Context, stream *fiber.StreamFiber) {
	path, err := readPath(ctx, stream)
	if err != nil {
		return
	}

	reply := make([]byte, 9)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		reply[0] = 1
		binary.BigEndian.PutUint64(reply[1:], uint64(info.Size()))
	}

	stream.Write(ctx, reply)
}

func (f *fileEnquirer) Stop() error {
	f.stopOnce.Do(func() {
		close(f.stopped)
		f.listener.Close()
	})
	f.wg.Wait()
	return nil
}

func readPath(ctx context.Context, stream *fiber.StreamFiber) (string, error) {
	lengthBuf := make([]byte, 4)
	if err := readFull(ctx, stream, lengthBuf); err != nil {
		return "", err
	}
	length := binary.BigEndian.Uint32(lengthBuf)
	pathBuf := make([]byte, length)
	if err := readFull(ctx, stream, pathBuf); err != nil {
		return "", err
	}
	return string(pathBuf), nil
}

func readFull(ctx context.Context, stream *fiber.StreamFiber, buffer []byte) error {
	for read := 0; read < len(buffer); {
		n, err := stream.Read(ctx, buffer[read:])
		if n > 0 {
			read += n
		} else if err == nil {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Query connects to a remote file enquirer and asks whether path exists,
// returning its size if so. It is the counterpart pkg/services/filecopy
// calls before starting a transfer, to skip one whose destination already
// has the local file's size.
func Query(ctx context.Context, demux *fiber.Demultiplexer, path string) (exists bool, size int64, err error) {
	stream, err := demux.Connect(ctx, 0, fiber.FileEnquirerPort)
	if err != nil {
		return false, 0, errors.Wrap(err, "unable to connect to remote file enquirer")
	}
	defer stream.Close()

	header := make([]byte, 4+len(path))
	binary.BigEndian.PutUint32(header, uint32(len(path)))
	copy(header[4:], path)
	if _, err := stream.Write(ctx, header); err != nil {
		return false, 0, errors.Wrap(err, "unable to send query")
	}

	reply := make([]byte, 9)
	if err := readFull(ctx, stream, reply); err != nil {
		return false, 0, errors.Wrap(err, "unable to read reply")
	}

	return reply[0] == 1, int64(binary.BigEndian.Uint64(reply[1:])), nil
}
