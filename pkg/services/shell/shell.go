// Package shell implements registry.ServiceProcess (id 10), the
// process/pty-backed interactive shell server behind the `-X`/`-Y` flags. It
// always binds the fixed fiber.ProcessPort, mirroring the fixed-port
// convention pkg/services/filecopy and pkg/services/fileenquirer already use
// for the other reserved service ids: a fiber listener that never needs to
// report a dynamically assigned port back to the peer.
//
// Spawn parameters come from the "ssf.services.shell.*" construction
// arguments (see pkg/configuration/ssf): "path" and "args" select the
// program to run in place of the platform's default interactive shell,
// "cwd" its working directory, "env_file" an optional dotenv file merged
// into its environment, and "cols"/"rows" the initial terminal size. These
// apply to every session the listener spawns; there is no per-connection
// negotiation of spawn parameters, and no in-band resize signaling once a
// session starts (the wire carries only the raw terminal byte stream).
package shell

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/environment"
	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
)

func init() {
	registry.Register(registry.ServiceProcess, newShellSpawner)
}

const (
	defaultCols = 80
	defaultRows = 24
)

// defaultShell returns the platform's default interactive shell program
// when no explicit path argument is supplied.
func defaultShell() string {
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// shellSpawner is registry.ServiceProcess: it accepts fibers on
// fiber.ProcessPort and spawns a fresh shell session for each one.
type shellSpawner struct {
	listener *fiber.Listener

	path    string
	args    []string
	cwd     string
	envFile string
	cols    int
	rows    int

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

func newShellSpawner(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	path := arguments["path"]
	if path == "" {
		path = defaultShell()
	}

	var args []string
	if raw := arguments["args"]; raw != "" {
		args = strings.Fields(raw)
	}

	cols := defaultCols
	rows := defaultRows
	if raw := arguments["cols"]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cols = parsed
		}
	}
	if raw := arguments["rows"]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			rows = parsed
		}
	}

	listener, err := demux.Listen(fiber.ProcessPort)
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind shell fiber listener")
	}

	return &shellSpawner{
		listener: listener,
		path:     path,
		args:     args,
		cwd:      arguments["cwd"],
		envFile:  arguments["env_file"],
		cols:     cols,
		rows:     rows,
		stopped:  make(chan struct{}),
	}, nil
}

func (s *shellSpawner) Run(ctx context.Context) error {
	for {
		stream, err := s.listener.Accept(ctx)
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
				return err
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, stream)
		}()
	}
}

// handle spawns one shell session bound to stream's lifetime: bytes read
// from the session are written to the fiber, bytes read from the fiber are
// written to the session, and the process is terminated when either side
// closes.
func (s *shellSpawner) handle(ctx context.Context, stream *fiber.StreamFiber) {
	defer stream.Close()

	cmd := exec.Command(s.path, s.args...)
	if s.cwd != "" {
		cmd.Dir = s.cwd
	}
	cmd.Env = s.environment()

	session, err := startSession(cmd, s.cols, s.rows)
	if err != nil {
		return
	}
	defer session.Close()

	waitDone := make(chan struct{})
	go func() {
		cmd.Wait()
		close(waitDone)
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		buffer := make([]byte, 32*1024)
		for {
			n, err := session.Read(buffer)
			if n > 0 {
				if _, werr := stream.Write(ctx, buffer[:n]); werr != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
		stream.Close()
	}()

	go func() {
		defer wg.Done()
		buffer := make([]byte, 32*1024)
		for {
			n, err := stream.Read(ctx, buffer)
			if n > 0 {
				if _, werr := session.Write(buffer[:n]); werr != nil {
					break
				}
			} else if n == 0 && err == nil {
				continue
			}
			if err != nil {
				break
			}
		}
		session.Close()
	}()

	wg.Wait()

	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	<-waitDone
}

// environment builds the process environment, merging any env_file dotenv
// overrides on top of the spawner's own environment.
func (s *shellSpawner) environment() []string {
	env := os.Environ()
	if s.envFile == "" {
		return env
	}
	overrides, err := godotenv.Read(s.envFile)
	if err != nil {
		return env
	}
	return append(env, environment.FromMap(overrides)...)
}

func (s *shellSpawner) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.listener.Close()
	})
	s.wg.Wait()
	return nil
}
