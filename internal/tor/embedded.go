package tor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds how long Tor may take to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// Daemon is a Tor process started and owned by this program.
// It listens on OS-assigned SOCKS and control ports.
type Daemon struct {
	startupTimeout time.Duration

	mu        sync.Mutex
	process   *tornago.TorProcess
	socksAddr string
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the bootstrap timeout.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// NewDaemon creates a Daemon. Nothing is started until Start is called.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor and blocks until it has bootstrapped, the startup
// timeout expires, or ctx is done. A process that finishes starting after
// ctx is done is stopped in the background.
func (d *Daemon) Start(ctx context.Context) error {
	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type started struct {
		process *tornago.TorProcess
		err     error
	}
	ch := make(chan started, 1)
	go func() {
		p, err := tornago.StartTorDaemon(cfg)
		ch <- started{process: p, err: err}
	}()

	select {
	case s := <-ch:
		if s.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", s.err)
		}
		d.mu.Lock()
		d.process = s.process
		d.socksAddr = s.process.SocksAddr()
		d.mu.Unlock()
		return nil
	case <-ctx.Done():
		go func() {
			if s := <-ch; s.process != nil {
				_ = s.process.Stop() //nolint:errcheck // nobody is left to report to
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts Tor down. It is safe to call on a Daemon that was never
// started or was already stopped.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// Running reports whether Tor has been started and not stopped.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.process != nil
}

// SocksAddr returns the SOCKS5 address of the running daemon, or an empty
// string.
func (d *Daemon) SocksAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.socksAddr
}

// Client returns a Client for the daemon's SOCKS port.
func (d *Daemon) Client() (*Client, error) {
	addr := d.SocksAddr()
	if addr == "" {
		return nil, ErrDaemonNotRunning
	}
	return NewClient(addr)
}
