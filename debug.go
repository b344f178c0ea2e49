//go:build debug

package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-pkgz/lgr"
)

// debugLogOptions forces debug logging and tees it into editgrid.log in the temp dir when built with -tags debug
func debugLogOptions(out io.Writer) []lgr.Option {
	fh, err := os.OpenFile(filepath.Join(os.TempDir(), "editgrid.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return []lgr.Option{lgr.Debug, lgr.Out(out)}
	}
	w := io.MultiWriter(out, fh)
	return []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.Out(w), lgr.Err(w)}
}
