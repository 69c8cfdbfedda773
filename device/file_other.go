//go:build !unix

package device

import (
	"errors"
	"io"
)

func (d *File) pread(p []byte, off int64) (int, error) {
	n, err := d.f.ReadAt(p, off)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

func (d *File) pwrite(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}
