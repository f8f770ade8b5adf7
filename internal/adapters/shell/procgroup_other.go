//go:build !unix

package shell

import "os/exec"

// setProcessGroup keeps the default behavior of killing only the direct child.
func setProcessGroup(*exec.Cmd) {}
