//go:build windows

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/adapters/wininput"
)

func parseBindingCode(value string) (uint16, error) {
	return wininput.ParseCode(value)
}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		return "auto", nil
	}
	if backend != "auto" && backend != "windows" {
		return "", fmt.Errorf("invalid --backend %q (windows supports auto|windows)", value)
	}
	return backend, nil
}

func captureNextCode(_ string, _ string, timeout time.Duration) (uint16, error) {
	return wininput.CaptureNextKeyCode(timeout)
}

func formatCodeName(code uint16) string {
	return wininput.FormatCodeName(code)
}

func listInputDevices(_ string) error {
	devices, err := wininput.ListInputDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		printDeviceLine(dev.Path, dev.Name, dev.IsVirtual, dev.IsPointer)
	}
	return nil
}

func permissionDeniedHint() string {
	return "Permission denied registering global input hooks. Run as Administrator and ensure input-hooking is allowed."
}

func startCompensatorFromConfig(cfg config, logger *slog.Logger) (compensatorRuntime, error) {
	if cfg.devicePath != "" {
		logger.Warn("--device is ignored on Windows; using global keyboard/mouse hooks")
	}

	runtime, err := wininput.NewRuntime(wininput.RuntimeConfig{
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

	logStartupState(logger, "windows", cfg)
	return runtime, nil
}
