package supervisor

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ensureFIFO creates the control FIFO unless something already exists at path.
func ensureFIFO(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := unix.Mkfifo(path, 0600); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// writeFIFO sends one command line to the server. The open does not block
// when nobody reads the FIFO; it fails with ENXIO instead.
func writeFIFO(path, command string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open fifo %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(command + "\n"); err != nil {
		return fmt.Errorf("write fifo %s: %w", path, err)
	}
	return nil
}
