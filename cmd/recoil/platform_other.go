//go:build !linux && !windows

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/adapters/portinput"
)

func parseBindingCode(value string) (uint16, error) {
	return portinput.ParseCode(value)
}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		return "auto", nil
	}
	if backend != "auto" && backend != "portable" {
		return "", fmt.Errorf("invalid --backend %q (this platform supports auto|portable)", value)
	}
	return backend, nil
}

func captureNextCode(_ string, _ string, timeout time.Duration) (uint16, error) {
	return portinput.CaptureNextKeyCode(timeout)
}

func formatCodeName(code uint16) string {
	return portinput.FormatCodeName(code)
}

func listInputDevices(_ string) error {
	devices, err := portinput.ListInputDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		printDeviceLine(dev.Path, dev.Name, dev.IsVirtual, dev.IsPointer)
	}
	return nil
}

func permissionDeniedHint() string {
	return "Permission denied registering global input hooks. Grant Accessibility and Input Monitoring permissions and try again."
}

func startCompensatorFromConfig(cfg config, logger *slog.Logger) (compensatorRuntime, error) {
	if cfg.devicePath != "" {
		logger.Warn("--device is ignored on this platform; using global input hooks")
	}

	runtime, err := portinput.NewRuntime(portinput.RuntimeConfig{
		TriggerCode:  cfg.triggerCode,
		CrouchCode:   cfg.crouchCode,
		Offsets:      cfg.offsets,
		Interval:     cfg.interval,
		CrouchScale:  cfg.crouchScale,
		StartEnabled: cfg.startEnabled,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := runtime.Start(); err != nil {
		runtime.Stop()
		return nil, err
	}

	logStartupState(logger, "portable", cfg)
	return runtime, nil
}
