package flex

import "fmt"

// Violatef panics with a formatted message. It exists for the small set
// of invariant violations a caller cannot recover from — an oversized
// key, a branch missing its tail child, a leaf split that finds no
// separator — mirroring
// the teacher's own preference for a hard, unrecovered failure on a
// broken invariant rather than a threaded error return.
func Violatef(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
