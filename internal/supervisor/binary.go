package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
)

// ValidateBinary checks that path names an existing executable regular file.
// All failures wrap ErrBinaryNotFound.
func ValidateBinary(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path is empty", ErrBinaryNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBinaryNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrBinaryNotFound, path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrBinaryNotFound, path)
	}
	return nil
}
