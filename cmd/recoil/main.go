package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"
)

type config struct {
	triggerCode  uint16
	crouchCode   uint16
	triggerRaw   string
	crouchRaw    string
	backend      string
	devicePath   string
	offsets      compensator.Offsets
	interval     time.Duration
	crouchScale  float64
	presetName   string
	startEnabled bool
	listDevices  bool
	ui           bool
	logLevel     slog.Level
}

func parseConfig(args []string) (config, error) {
	cfg := config{startEnabled: true}
	flags := flag.NewFlagSet("recoil", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		triggerRaw  string
		crouchRaw   string
		backendRaw  string
		logLevelRaw string
		intervalMS  int
		cliMode     bool
	)

	flags.Float64Var(&cfg.offsets.X, "x", 0, "Horizontal pointer delta per tick in pixels (positive = right). Fractions accumulate.")
	flags.Float64Var(&cfg.offsets.Y, "y", 0, "Vertical pointer delta per tick in pixels (positive = down, pulls against upward recoil).")
	flags.Float64Var(&cfg.offsets.Z, "z", 0, "Wheel scroll steps per tick (positive = scroll up).")
	flags.IntVar(&intervalMS, "interval", 10, "Milliseconds between ticks while the trigger is held (1-100).")
	flags.Float64Var(&cfg.crouchScale, "crouch-scale", 0.5, "Offset multiplier while the crouch key is held (0-1).")
	flags.StringVar(&triggerRaw, "trigger", "BTN_LEFT", "Trigger button/key code name (default: BTN_LEFT). Example: BTN_RIGHT, KEY_F.")
	flags.StringVar(&crouchRaw, "crouch-key", "KEY_LEFTCTRL", "Crouch key whose hold scales the offsets (default: KEY_LEFTCTRL).")
	flags.StringVar(&cfg.presetName, "preset", "", "Load X/Y/Z offsets from a saved preset by name.")
	flags.StringVar(&backendRaw, "backend", "auto", "Input backend. Linux: auto|wayland|x11|evdev (alias for wayland). Windows: auto|windows.")
	flags.StringVar(&cfg.devicePath, "device", "", "Input event device path to listen on, e.g. /dev/input/event4. Auto-detected if omitted.")
	flags.BoolVar(&cfg.listDevices, "list-devices", false, "Print available input devices and exit.")
	flags.BoolVar(&cfg.ui, "ui", true, "Start desktop GUI (Fyne) by default. Use --ui=false or --cli for terminal mode.")
	flags.BoolVar(&cliMode, "cli", false, "Force terminal mode (disables GUI).")
	flags.StringVar(&logLevelRaw, "log-level", "info", "Log verbosity (default: info). Allowed: debug, info, warning, error.")

	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case flags.NArg() > 0:
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	case intervalMS < 1 || intervalMS > 100:
		return cfg, fmt.Errorf("--interval must be within 1-100 ms")
	case math.IsNaN(cfg.crouchScale) || cfg.crouchScale < 0 || cfg.crouchScale > 1:
		return cfg, fmt.Errorf("--crouch-scale must be within 0-1")
	}
	for _, v := range [...]float64{cfg.offsets.X, cfg.offsets.Y, cfg.offsets.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return cfg, fmt.Errorf("--x/--y/--z must be finite")
		}
	}

	var err error
	if cfg.triggerCode, err = parseBindingCode(triggerRaw); err != nil {
		return cfg, err
	}
	if cfg.crouchCode, err = parseBindingCode(crouchRaw); err != nil {
		return cfg, err
	}
	if cfg.triggerCode == cfg.crouchCode {
		return cfg, fmt.Errorf("--crouch-key must be different from --trigger")
	}
	if cfg.logLevel, err = parseLogLevel(logLevelRaw); err != nil {
		return cfg, err
	}
	if cfg.backend, err = parseBackendChoice(backendRaw); err != nil {
		return cfg, err
	}

	if cfg.presetName != "" {
		presets, err := loadPresets()
		if err != nil {
			return cfg, err
		}
		p, ok := presets[cfg.presetName]
		if !ok {
			return cfg, fmt.Errorf("unknown preset %q (saved: %s)", cfg.presetName, strings.Join(sortedPresetNames(presets), ", "))
		}
		cfg.offsets = compensator.Offsets{X: p.MoveX, Y: p.MoveY, Z: p.MoveZ}
	}

	cfg.triggerRaw = triggerRaw
	cfg.crouchRaw = crouchRaw
	cfg.interval = time.Duration(intervalMS) * time.Millisecond
	cfg.ui = cfg.ui && !cliMode
	return cfg, nil
}

func logStartupState(logger *slog.Logger, backend string, cfg config) {
	logger.Info("Backend", "name", backend)
	logger.Info("Trigger", "name", formatCodeName(cfg.triggerCode), "code", cfg.triggerCode)
	logger.Info("Crouch", "name", formatCodeName(cfg.crouchCode), "code", cfg.crouchCode, "scale", cfg.crouchScale)
	logger.Info("Offsets", "x", cfg.offsets.X, "y", cfg.offsets.Y, "z", cfg.offsets.Z)
	logger.Info("Interval", "ms", cfg.interval.Milliseconds())
	if cfg.startEnabled {
		logger.Info("Initial state enabled")
	} else {
		logger.Info("Initial state disabled")
	}
	logger.Info("Hold trigger to apply recoil compensation. Press Ctrl+C to stop")
}

func printDeviceLine(path, name string, isVirtual, isPointer bool) {
	virtualTag := "physical"
	if isVirtual {
		virtualTag = "virtual"
	}
	pointerTag := "non-pointer"
	if isPointer {
		pointerTag = "pointer"
	}
	fmt.Printf("%s: %s [%s, %s]\n", path, name, virtualTag, pointerTag)
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}

// runCLI runs the compensator headless until SIGINT/SIGTERM.
func runCLI(cfg config) error {
	logger := newSlogLogger(cfg.logLevel, nil)
	runtime, err := startCompensatorFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer runtime.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	return nil
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseConfig(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	switch {
	case cfg.listDevices:
		err = listInputDevices(cfg.backend)
	case cfg.ui:
		err = runUI(cfg)
	default:
		err = runCLI(cfg)
	}
	if err != nil {
		if isPermissionError(err) {
			fmt.Fprintln(stderr, permissionDeniedHint())
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}
