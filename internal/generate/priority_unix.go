//go:build unix

package generate

import (
	"log"
	"syscall"
)

// lowerPriority renices the batch process so a large generation run does not
// starve other host processes. Best effort.
func lowerPriority() {
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, 0, 10); err != nil {
		log.Printf("[Generate] could not lower process priority: %v", err)
	}
}
