//go:build unix

package device

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

func (d *File) pread(p []byte, off int64) (int, error) {
	fd := int(d.f.Fd())
	total := 0
	for total < len(p) {
		n, err := unix.Pread(fd, p[total:], off+int64(total))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break // EOF
		}
		total += n
	}
	return total, nil
}

func (d *File) pwrite(p []byte, off int64) (int, error) {
	fd := int(d.f.Fd())
	total := 0
	for total < len(p) {
		n, err := unix.Pwrite(fd, p[total:], off+int64(total))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
		total += n
	}
	return total, nil
}
