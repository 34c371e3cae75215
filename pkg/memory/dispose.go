package memory

import "io"

// Destroyer is implemented by managed types that hold resources beyond
// plain memory. Destroy runs once, when the last owner lets go.
type Destroyer interface {
	Destroy()
}

// Dispose runs the destruction hook of v, if it has one, and then clears
// its self-reference slot. Destroyer wins over io.Closer; Close errors are
// logged since nobody is left to receive them.
func Dispose(v any) {
	if v == nil {
		return
	}
	switch d := v.(type) {
	case Destroyer:
		d.Destroy()
	case io.Closer:
		if err := d.Close(); err != nil {
			logger.Error(err, "close failed during disposal")
		}
	}
	if r, ok := v.(selfReleaser); ok {
		r.releaseWeakThis()
	}
}
