package shell

import "time"

func (r *Runner) SetWaitDelay(d time.Duration) {
	r.waitDelay = d
}
