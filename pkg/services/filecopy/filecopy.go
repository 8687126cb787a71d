// Package filecopy implements the file-copy microservice pair behind
// registry ids 7 (fiber→file) and 8 (file→fiber). Unlike the stream- and
// datagram-forward pairs, the pair meets on one fixed well-known fiber port
// (fiber.FiberToFilePort): fiber→file listens on it and file→fiber connects
// to it, rather than deriving a port from a CLI argument, mirroring
// the always-on listener the original copy_file fiber_to_file service
// exposes at its own fixed service port.
//
// Wire framing is a single 4-byte big-endian length prefix, the UTF-8
// destination path, and then the raw file contents with no interior
// framing: the transfer is complete when the fiber stream closes. This is
// a deliberate simplification of the richer type/size/signal packet
// protocol original_source/ uses (data packets interleaved with an
// end-of-file or interrupted control packet): gated by
// ssf.services.fileCopy.enable, a plain byte stream terminated by close is
// sufficient, since the multiplexer's own fiber close already signals
// completion or interruption without a second in-band marker.
package filecopy

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
	"github.com/ssfcore/ssf/pkg/services/fileenquirer"
)

func init() {
	registry.Register(registry.ServiceFiberToFile, newFiberToFile)
	registry.Register(registry.ServiceFileToFiber, newFileToFiber)
}

func writePath(ctx context.Context, stream *fiber.StreamFiber, path string) error {
	if len(path) > 0xffffffff {
		return errors.New("filecopy: path too long")
	}
	header := make([]byte, 4+len(path))
	binary.BigEndian.PutUint32(header, uint32(len(path)))
	copy(header[4:], path)
	_, err := stream.Write(ctx, header)
	return err
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

// fiberToFile is registry.ServiceFiberToFile (id 7): it accepts fibers on
// the fixed fiber.FiberToFilePort and, for each one, reads a destination
// path followed by raw file bytes until the fiber closes.
type fiberToFile struct {
	listener *fiber.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

func newFiberToFile(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	listener, err := demux.Listen(fiber.FiberToFilePort)
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind file-copy fiber listener")
	}
	return &fiberToFile{listener: listener, stopped: make(chan struct{})}, nil
}

func (f *fiberToFile) Run(ctx context.Context) error {
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
			f.receive(ctx, stream)
		}()
	}
}

func (f *fiberToFile) receive(ctx context.Context, stream *fiber.StreamFiber) {
	defer stream.Close()

	path, err := readPath(ctx, stream)
	if err != nil {
		return
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	defer file.Close()

	buffer := make([]byte, 64*1024)
	for {
		n, err := stream.Read(ctx, buffer)
		if n > 0 {
			if _, werr := file.Write(buffer[:n]); werr != nil {
				os.Remove(path)
				return
			}
		} else if n == 0 && err == nil {
			continue
		}
		if err != nil {
			if err != io.EOF && err != fiber.ErrConnectionAborted {
				os.Remove(path)
			}
			return
		}
	}
}

func (f *fiberToFile) Stop() error {
	f.stopOnce.Do(func() {
		close(f.stopped)
		f.listener.Close()
	})
	f.wg.Wait()
	return nil
}

// fileToFiber is registry.ServiceFileToFiber (id 8): a one-shot transfer
// that reads a single local file and sends it, framed by destination path,
// to the peer's fiberToFile listener.
type fileToFiber struct {
	demux      *fiber.Demultiplexer
	localPath  string
	remotePath string

	stopOnce sync.Once
	stopped  chan struct{}
}

func newFileToFiber(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPath := arguments["local_path"]
	remotePath := arguments["remote_path"]
	if localPath == "" || remotePath == "" {
		return nil, errors.New("filecopy: file-to-fiber requires local_path and remote_path arguments")
	}
	return &fileToFiber{
		demux:      demux,
		localPath:  localPath,
		remotePath: remotePath,
		stopped:    make(chan struct{}),
	}, nil
}

func (f *fileToFiber) Run(ctx context.Context) error {
	file, err := os.Open(f.localPath)
	if err != nil {
		return errors.Wrap(err, "unable to open local file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.Wrap(err, "unable to stat local file")
	}

	if exists, size, err := fileenquirer.Query(ctx, f.demux, f.remotePath); err == nil && exists && size == info.Size() {
		return nil
	}

	stream, err := f.demux.Connect(ctx, 0, fiber.FiberToFilePort)
	if err != nil {
		return errors.Wrap(err, "unable to connect to remote file-copy service")
	}
	defer stream.Close()

	if err := writePath(ctx, stream, f.remotePath); err != nil {
		return errors.Wrap(err, "unable to send destination path")
	}

	buffer := make([]byte, 64*1024)
	for {
		select {
		case <-f.stopped:
			return nil
		default:
		}

		n, err := file.Read(buffer)
		if n > 0 {
			if _, werr := stream.Write(ctx, buffer[:n]); werr != nil {
				return errors.Wrap(werr, "unable to write file contents")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "unable to read local file")
		}
	}
}

func (f *fileToFiber) Stop() error {
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}
