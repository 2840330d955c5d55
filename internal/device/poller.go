package device

import (
	"context"
	"log"
	"sync"
	"time"
)

// Poller is the legacy fixed-interval operating mode. The push design
// replaces it to reduce load, but both modes remain supported; the poller
// only runs when poll mode is configured.
type Poller struct {
	device   *Device
	interval time.Duration
	logger   *log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPoller(device *Device, interval time.Duration, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		device:   device,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop in a goroutine.
func (p *Poller) Start() {
	p.logger.Printf("POLL: polling every %v", p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run()
	}()
}

// Stop halts the loop and waits for it to finish.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Printf("POLL: stopped")
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.device.Refresh(context.Background())
		}
	}
}
