package scene

import (
	"fmt"

	"golang.org/x/xerrors"
)

// RenderError is returned by Render when an image could not be produced or
// persisted.
type RenderError struct {
	// The stage that failed: "render", "encode" or "save".
	Op       string
	Filename string

	inner error
	frame xerrors.Frame
}

func newRenderError(op, filename string, inner error) *RenderError {
	return &RenderError{
		Op:       op,
		Filename: filename,
		inner:    inner,
		frame:    xerrors.Caller(1),
	}
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Filename, e.inner)
}

func (e *RenderError) Format(f fmt.State, c rune) { // implements fmt.Formatter
	xerrors.FormatError(e, f, c)
}

func (e *RenderError) FormatError(p xerrors.Printer) error { // implements xerrors.Formatter
	p.Print(fmt.Sprintf("%s %q", e.Op, e.Filename))
	if p.Detail() {
		e.frame.Format(p)
	}
	return e.inner
}

func (e *RenderError) Unwrap() error {
	return e.inner
}
