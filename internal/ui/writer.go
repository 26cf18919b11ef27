package ui

import "io"

// Writer receives a rendered view of a tree or summary.
type Writer interface {
	io.Writer
	io.StringWriter
}
