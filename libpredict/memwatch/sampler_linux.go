//go:build linux

package memwatch

import (
	"bytes"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type procSampler struct {
	pageSize uint64
}

// OSSampler returns a Sampler reading /proc/self/statm and sysinfo(2).
func OSSampler() Sampler {
	return &procSampler{
		pageSize: uint64(os.Getpagesize()),
	}
}

func (ps *procSampler) ResidentBytes() (uint64, error) {
	statm, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, err
	}

	// statm: size resident shared text lib data dt (in pages)
	fields := bytes.Fields(statm)
	if len(fields) < 2 {
		return 0, errors.Errorf("unexpected /proc/self/statm: %q", statm)
	}
	pages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing /proc/self/statm")
	}
	return pages * ps.pageSize, nil
}

func (ps *procSampler) TotalBytes() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}
