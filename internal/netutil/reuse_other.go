//go:build !unix

package netutil

import "syscall"

// ReuseAddr is a no-op where SO_REUSEADDR has different semantics (Windows
// lets a second socket steal the port).
func ReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
