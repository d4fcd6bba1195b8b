package safe

import (
	"Tribe/logger"
)

// Go starts a goroutine that recovers from panic so a bad handler
// cannot take the whole gateway down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
