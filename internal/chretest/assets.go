package chretest

import (
	"fmt"
	"io/fs"

	"github.com/roach88/hubtest/internal/contexthub"
)

// ReadNanoAppBinary reads the image name from fsys and parses its header.
// A missing asset or a malformed header aborts.
func ReadNanoAppBinary(r Reporter, fsys fs.FS, name string) *contexthub.NanoAppBinary {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		r.Fatal(&FatalError{Message: fmt.Sprintf("Could not find asset %s", name), Err: err})
		return nil
	}

	binary, err := contexthub.ParseNanoAppBinary(raw)
	if err != nil {
		r.Fatal(&FatalError{Message: fmt.Sprintf("Invalid nanoapp binary %s", name), Err: err})
		return nil
	}
	return binary
}
