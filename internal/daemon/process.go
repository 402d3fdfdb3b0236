package daemon

import (
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// child is a supervised command running in its own process group.
type child struct {
	cmd    *exec.Cmd
	exited chan struct{}

	mu  sync.Mutex
	err error
}

func startChild(command string, args []string) (*child, error) {
	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	c := &child{cmd: cmd, exited: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.exited)
	}()
	return c, nil
}

func (c *child) pid() int {
	return c.cmd.Process.Pid
}

func (c *child) exitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// terminate sends SIGTERM to the process group and SIGKILL once grace
// expires. It reports whether SIGKILL was needed.
func (c *child) terminate(grace time.Duration) (bool, error) {
	select {
	case <-c.exited:
		return false, nil
	default:
	}
	if err := signalGroup(c.pid(), unix.SIGTERM); err != nil {
		return false, err
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-c.exited:
		return false, nil
	case <-timer.C:
	}
	if err := signalGroup(c.pid(), unix.SIGKILL); err != nil {
		return true, err
	}
	<-c.exited
	return true, nil
}

func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
