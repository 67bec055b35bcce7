package surfacegen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// prepareOutputDir checks that dir exists, is a directory and accepts new
// files. With create set a missing dir is created first.
func prepareOutputDir(dir string, create bool) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: failed to create output directory: %w", ErrOutput, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: output directory %s does not exist", ErrOutput, dir)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrOutput, err)
	case !info.IsDir():
		return fmt.Errorf("%w: output path %s is not a directory", ErrOutput, dir)
	}

	probe, err := os.CreateTemp(dir, ".bivssm-probe-*")
	if err != nil {
		return fmt.Errorf("%w: output directory %s is not writable: %w", ErrOutput, dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: failed to remove probe file: %w", ErrOutput, err)
	}
	return nil
}

// InstanceName returns the file name of instance i in a batch of n,
// zero-padded to the digit count of n.
func InstanceName(i, n int, format Format) string {
	width := len(strconv.Itoa(n))
	return fmt.Sprintf("synthetic%0*d.%s", width, i, format)
}

// instancePath joins dir and the instance name.
func instancePath(dir string, i, n int, format Format) string {
	return filepath.Join(dir, InstanceName(i, n, format))
}
