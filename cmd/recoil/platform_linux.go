//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/adapters/linuxinput"
	"github.com/ezhoncho/fallen-recoil/internal/adapters/x11input"
)

func parseBindingCode(value string) (uint16, error) {
	return linuxinput.ParseCode(value)
}

func formatCodeName(code uint16) string {
	return linuxinput.FormatCodeName(code)
}

var linuxBackends = map[string]bool{"auto": true, "wayland": true, "x11": true, "evdev": true}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		return "auto", nil
	}
	if !linuxBackends[backend] {
		return "", fmt.Errorf("invalid --backend %q (linux supports auto|wayland|x11|evdev)", value)
	}
	return backend, nil
}

// resolveLinuxBackend maps the configured choice to a concrete backend,
// sniffing the session type when set to auto. evdev is an alias for wayland.
func resolveLinuxBackend(configured string) string {
	switch strings.ToLower(strings.TrimSpace(configured)) {
	case "evdev", "wayland":
		return "wayland"
	case "x11":
		return "x11"
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE"))) {
	case "wayland":
		return "wayland"
	case "x11":
		return "x11"
	}
	if strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) != "" {
		return "wayland"
	}
	if strings.TrimSpace(os.Getenv("DISPLAY")) != "" {
		return "x11"
	}
	return "wayland"
}

func captureNextCode(backend, devicePath string, timeout time.Duration) (uint16, error) {
	if resolveLinuxBackend(backend) == "x11" {
		return x11input.CaptureNextKeyCode(timeout)
	}
	return linuxinput.CaptureNextKeyCode(devicePath, timeout)
}

func listInputDevices(backend string) error {
	if resolveLinuxBackend(backend) == "x11" {
		devices, err := x11input.ListInputDevices()
		if err != nil {
			return err
		}
		for _, dev := range devices {
			printDeviceLine(dev.Path, dev.Name, dev.IsVirtual, dev.IsPointer)
		}
		return nil
	}

	devices, err := linuxinput.ListInputDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		printDeviceLine(dev.Path, dev.Name, dev.IsVirtual, dev.IsPointer)
	}
	return nil
}

func permissionDeniedHint() string {
	return "Permission denied opening input backend. Wayland/evdev needs read access to /dev/input and write access to /dev/uinput (root or udev rules). X11 needs an active session with DISPLAY set."
}

func startCompensatorFromConfig(cfg config, logger *slog.Logger) (compensatorRuntime, error) {
	if resolveLinuxBackend(cfg.backend) == "x11" {
		return startX11CompensatorFromConfig(cfg, logger)
	}
	return startEvdevCompensatorFromConfig(cfg, logger)
}

func startEvdevCompensatorFromConfig(cfg config, logger *slog.Logger) (compensatorRuntime, error) {
	selection, err := linuxinput.OpenSourceSelection(cfg.devicePath, cfg.triggerCode, cfg.crouchCode)
	if err != nil {
		return nil, err
	}

	for _, dev := range selection.Devices {
		name, _ := dev.Name()
		logger.Info("Using source device", "path", dev.Path(), "name", name)
	}

	runtime, err := linuxinput.NewRuntime(selection, linuxinput.RuntimeConfig{
		TriggerCode:  cfg.triggerCode,
		CrouchCode:   cfg.crouchCode,
		Offsets:      cfg.offsets,
		Interval:     cfg.interval,
		CrouchScale:  cfg.crouchScale,
		StartEnabled: cfg.startEnabled,
	}, logger)
	if err != nil {
		for _, dev := range selection.Devices {
			_ = dev.Close()
		}
		return nil, err
	}
	if err := runtime.Start(); err != nil {
		runtime.Stop()
		return nil, err
	}

	logStartupState(logger, "wayland", cfg)
	return runtime, nil
}

func startX11CompensatorFromConfig(cfg config, logger *slog.Logger) (compensatorRuntime, error) {
	if cfg.devicePath != "" {
		logger.Warn("--device is ignored on X11 backend")
	}

	runtime, err := x11input.NewRuntime(x11input.RuntimeConfig{
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

	logStartupState(logger, "x11", cfg)
	return runtime, nil
}
