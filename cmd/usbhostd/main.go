// usbhostd is a demo service host for the usbhost library: it initializes
// the facade, polls the device list, and logs topology changes as they are
// signaled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kardianos/service"

	"github.com/vmbridge/usbhost/internal/config"
	"github.com/vmbridge/usbhost/internal/logger"
	"github.com/vmbridge/usbhost/internal/usbhost"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	svcFlag := flag.String("service", "", "control the system service: install, uninstall, start, stop, run")
	configPath := flag.String("config", "", "config file name, looked up in the config search paths")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("usbhostd %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svcConfig := getServiceConfig()
	prg := &program{}
	svc, err := service.New(prg, svcConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create service: %v\n", err)
		os.Exit(1)
	}

	if *svcFlag != "" && *svcFlag != "run" {
		if err := service.Control(svc, *svcFlag); err != nil {
			fmt.Fprintf(os.Stderr, "failed to %s service: %v\n", *svcFlag, err)
			os.Exit(1)
		}
		fmt.Printf("service %s succeeded\n", *svcFlag)
		return
	}

	if *svcFlag == "run" {
		if err := svc.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "service run failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runInteractive(context.Background(), cfg)
}

func runInteractive(ctx context.Context, cfg config.Config) {
	runDaemonWithConfig(ctx, cfg)
}

func runDaemon(ctx context.Context) {
	runDaemonWithConfig(ctx, config.Default())
}

func runDaemonWithConfig(ctx context.Context, cfg config.Config) {
	log := logger.New(parseLevel(cfg.LogLevel), cfg.LogDir, 1<<20)
	defer log.Close()
	log.SetConsoleOutput(true)

	runID := uuid.New().String()
	log.Info("starting usbhostd", "run_id", runID, "version", Version)

	if err := usbhost.Init(cfg, log); err != nil {
		log.Error("failed to initialize usbhost", "error", err)
		return
	}
	defer usbhost.Term()

	for {
		devices, err := usbhost.GetDevices()
		if err != nil {
			log.Error("failed to get devices", "error", err)
		} else {
			log.Info("device snapshot", "count", len(devices))
			for _, d := range devices {
				log.Debug("device",
					"vendor", fmt.Sprintf("%04x", d.VendorID),
					"product", fmt.Sprintf("%04x", d.ProductID),
					"state", d.State.String(),
					"serial", d.Serial)
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		status, err := usbhost.WaitChange(5000)
		if err != nil {
			log.Error("wait_change failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		switch status {
		case usbhost.WaitInterrupted:
			return
		case usbhost.WaitSuccess:
			log.Info("topology change detected")
		case usbhost.WaitTimeout:
		}
	}
}

func parseLevel(s string) logger.Level {
	switch s {
	case "ERROR":
		return logger.ERROR
	case "WARN":
		return logger.WARN
	case "DEBUG":
		return logger.DEBUG
	case "TRACE":
		return logger.TRACE
	default:
		return logger.INFO
	}
}
