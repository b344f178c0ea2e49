//go:build !debug

package main

import (
	"io"

	"github.com/go-pkgz/lgr"
)

// debugLogOptions adds nothing in release builds
func debugLogOptions(io.Writer) []lgr.Option { return nil }
