// Package term builds termenv outputs with the color rules used across rig.
package term

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// Profile returns Ascii when NO_COLOR is set and ANSI otherwise.
// Job output is usually piped, so the terminal is not probed.
func Profile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.ANSI
}

// NewOutput returns a termenv.Output for w using Profile.
// A nil w writes to stderr.
func NewOutput(w io.Writer) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	return termenv.NewOutput(w, termenv.WithProfile(Profile()), termenv.WithTTY(true))
}

// Paint renders s in color c on out.
func Paint(out *termenv.Output, s string, c string) string {
	return out.String(s).Foreground(out.Color(c)).String()
}
