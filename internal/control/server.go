package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dotos-lab/sysuid/internal/mainloop"
)

const (
	dispatchTimeout = 5 * time.Second
	writeTimeout    = 2 * time.Second
)

// State is the service view carried by every response.
type State struct {
	Running bool
	Polling bool
	Asleep  bool
}

// Callbacks are invoked on the mainloop handler, one command at a time.
// A nil callback makes its command answer with an error.
type Callbacks struct {
	OnStart        func()
	OnStop         func()
	Status         func() State
	OnSleep        func()
	OnWake         func()
	OnMonetRefresh func() error
}

// Server accepts bindings on a unix socket.
type Server struct {
	listener net.Listener
	handler  *mainloop.Handler
	cb       Callbacks
	sockPath string
	log      *slog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Listen binds sockPath. A stale socket left by a dead process is removed;
// a live peer yields ErrAlreadyServing.
func Listen(sockPath string, h *mainloop.Handler, cb Callbacks, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		conn, dialErr := net.DialTimeout("unix", sockPath, 2*time.Second)
		if dialErr != nil {
			os.Remove(sockPath)
			ln, err = net.Listen("unix", sockPath)
			if err != nil {
				return nil, fmt.Errorf("control bind failed: %w", err)
			}
		} else {
			conn.Close()
			return nil, ErrAlreadyServing
		}
	}
	return &Server{
		listener: ln,
		handler:  h,
		cb:       cb,
		sockPath: sockPath,
		log:      log.With("component", "control"),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}


// Serve accepts connections until ctx ends or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.Info("control socket listening", "path", s.sockPath)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("control accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting, drops every binding and removes the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.listener.Close()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	os.Remove(s.sockPath)
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	dec := msgpack.NewDecoder(conn)
	enc := msgpack.NewEncoder(conn)
	bound := ""
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if bound != "" {
				s.log.Debug("client unbound", "client", bound)
			}
			return
		}
		if bound == "" && req.Client != "" {
			bound = req.Client
			s.log.Debug("client bound", "client", bound)
		}
		resp := s.dispatch(ctx, req)
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := enc.Encode(&resp); err != nil {
			s.log.Debug("control write failed", "client", bound, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	type outcome struct {
		state State
		err   error
	}
	result := make(chan outcome, 1)

	callCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	ran := s.handler.Call(callCtx, func() {
		var o outcome
		switch req.Cmd {
		case CmdStart:
			o.err = invoke(s.cb.OnStart)
		case CmdStop:
			o.err = invoke(s.cb.OnStop)
		case CmdStatus:
		case CmdSleep:
			o.err = invoke(s.cb.OnSleep)
		case CmdWake:
			o.err = invoke(s.cb.OnWake)
		case CmdMonetRefresh:
			if s.cb.OnMonetRefresh == nil {
				o.err = errors.New("unsupported command")
			} else {
				o.err = s.cb.OnMonetRefresh()
			}
		default:
			o.err = fmt.Errorf("unknown command %q", req.Cmd)
		}
		if s.cb.Status != nil {
			o.state = s.cb.Status()
		}
		result <- o
	})

	resp := Response{ID: req.ID, Status: statusOK}
	var cmdErr error
	if ran {
		o := <-result
		resp.Running = o.state.Running
		resp.Polling = o.state.Polling
		resp.Asleep = o.state.Asleep
		cmdErr = o.err
	} else {
		cmdErr = errors.New("service busy")
	}
	if cmdErr != nil {
		resp.Status = statusErr
		resp.Message = cmdErr.Error()
		s.log.Warn("control command failed", "cmd", req.Cmd, "id", req.ID, "error", cmdErr)
	}
	return resp
}

func invoke(fn func()) error {
	if fn == nil {
		return errors.New("unsupported command")
	}
	fn()
	return nil
}
