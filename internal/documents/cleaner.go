package documents

import (
	"time"

	"github.com/openmark/openmark/pkg/logger"
)

// Cleaner periodically sweeps the temp-document cache.
type Cleaner struct {
	svc      *Service
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewCleaner(svc *Service, interval time.Duration) *Cleaner {
	return &Cleaner{svc: svc, interval: interval}
}

// Start launches the sweep loop. Calling Start on a running cleaner is a
// no-op.
func (c *Cleaner) Start() {
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	logger.Infof("cache cleaner started, sweeping every %s", c.interval)
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.svc.RemoveExpired()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to exit.
func (c *Cleaner) Stop() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	logger.Infof("cache cleaner stopped")
}
