package memory

import "github.com/go-logr/logr"

var logger = logr.Discard()

// SetLogger installs the logger used for lifecycle tracing.
// Block and object transitions are logged at V(1).
// Not safe to call while handles are in use on other goroutines.
func SetLogger(l logr.Logger) {
	logger = l.WithName("memory")
}
