// Package process launches declared process types with a prepared
// environment.
package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/reviewapps-dev/wfpack/internal/env"
)

// Info is a started process. Done is closed once it has exited.
type Info struct {
	Cmd *exec.Cmd
	PID int

	done chan struct{}
	err  error
}

// Command prepares command to run through bash in dir. The child sees the
// current environment overlaid with vars; this process's own environment is
// left untouched.
func Command(dir, command string, vars *env.Map) *exec.Cmd {
	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = dir
	cmd.Env = vars.Environ(os.Environ())
	return cmd
}

func Start(cmd *exec.Cmd) (*Info, error) {
	// Use process group so we can kill the whole tree
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	info := &Info{
		Cmd:  cmd,
		PID:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go func() {
		info.err = cmd.Wait()
		close(info.done)
	}()
	return info, nil
}

func (i *Info) Done() <-chan struct{} { return i.done }

// Err is the result of Wait. Only valid after Done is closed.
func (i *Info) Err() error { return i.err }

// Stop sends SIGTERM to the process group and escalates to SIGKILL after
// grace. It returns once the process has exited.
func Stop(info *Info, grace time.Duration) error {
	pid := info.PID

	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		info.Cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-info.done:
		return nil
	case <-time.After(grace):
		// Force kill the process group
		if pgid, err := syscall.Getpgid(pid); err == nil {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			info.Cmd.Process.Kill()
		}
		<-info.done
		return nil
	}
}
