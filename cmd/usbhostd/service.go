package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface, running the demo polling loop
// under the service manager's lifecycle.
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("usbhostd service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)

	if p.svcLogger != nil {
		p.svcLogger.Info("usbhostd service running")
	}

	runDaemon(p.ctx)

	if p.svcLogger != nil {
		p.svcLogger.Info("usbhostd service stopping")
	}
}

func (p *program) Stop(s service.Service) error {
	if p.svcLogger != nil {
		p.svcLogger.Info("usbhostd service stop requested")
	}

	if p.cancel != nil {
		p.cancel()
	}

	timeout := time.After(10 * time.Second)
	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("usbhostd service stopped gracefully")
		}
	case <-timeout:
		if p.svcLogger != nil {
			p.svcLogger.Warning("usbhostd service stopped with timeout")
		}
	}

	return nil
}

func getServiceConfig() *service.Config {
	workingDir := filepath.Join(os.Getenv("ProgramData"), "vmbridge", "usbhost")

	return &service.Config{
		Name:             "VMBridgeUSBHost",
		DisplayName:      "VMBridge USB Host Service",
		Description:      "Enumerates host USB devices and mediates their capture state for guest passthrough.",
		WorkingDirectory: workingDir,
		Arguments:        []string{"--service", "run"},
		Option: service.KeyValue{
			"StartType":              "automatic",
			"DelayedAutoStart":       true,
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
			"OnFailureResetPeriod":   30,
		},
	}
}
