package tor

import (
	"errors"
	"testing"
	"time"
)

func TestNewDaemon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []DaemonOption
		want time.Duration
	}{
		{name: "default timeout", want: DefaultStartupTimeout},
		{name: "custom timeout", opts: []DaemonOption{WithStartupTimeout(30 * time.Second)}, want: 30 * time.Second},
		{name: "non-positive timeout is ignored", opts: []DaemonOption{WithStartupTimeout(0)}, want: DefaultStartupTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDaemon(tt.opts...)
			if d.startupTimeout != tt.want {
				t.Errorf("startupTimeout = %v, want %v", d.startupTimeout, tt.want)
			}
		})
	}
}

func TestDaemonNotStarted(t *testing.T) {
	t.Parallel()

	d := NewDaemon()
	if d.Running() {
		t.Error("Running() should be false before Start")
	}
	if d.SocksAddr() != "" {
		t.Errorf("SocksAddr() = %q, want empty", d.SocksAddr())
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Stop() on an unstarted daemon: %v", err)
	}
	if _, err := d.Client(); !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("Client() error = %v, want ErrDaemonNotRunning", err)
	}
}
