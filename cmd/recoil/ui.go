package main

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"
)

type compensatorRuntime interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
	TriggerActive() bool
	SetOffsets(off compensator.Offsets) error
	SetInterval(d time.Duration)
	SetCrouchScale(scale float64) error
	SetTriggerCode(code uint16)
	SetCrouchCode(code uint16)
	CaptureNextKeyCode(timeout time.Duration) (uint16, error)
	Stop()
}

// recoilTheme darkens the stock dark theme and swaps the accent for the
// crimson the rest of the window uses. Embedding the base theme keeps Font
// and Icon on the stock resources.
type recoilTheme struct {
	fyne.Theme
}

var accentColor = color.NRGBA{R: 0xe5, G: 0x48, B: 0x55, A: 0xff}

var recoilPalette = map[fyne.ThemeColorName]color.Color{
	theme.ColorNameBackground:      color.NRGBA{R: 0x10, G: 0x0c, B: 0x0e, A: 0xff},
	theme.ColorNameButton:          color.NRGBA{R: 0x24, G: 0x1c, B: 0x1f, A: 0xff},
	theme.ColorNameDisabledButton:  color.NRGBA{R: 0x1a, G: 0x15, B: 0x17, A: 0xff},
	theme.ColorNameInputBackground: color.NRGBA{R: 0x1c, G: 0x16, B: 0x18, A: 0xff},
	theme.ColorNameInputBorder:     color.NRGBA{R: 0x3a, G: 0x2c, B: 0x30, A: 0xff},
	theme.ColorNameSeparator:       color.NRGBA{R: 0x3a, G: 0x2c, B: 0x30, A: 0xff},
	theme.ColorNamePrimary:         accentColor,
	theme.ColorNameHyperlink:       accentColor,
	theme.ColorNameFocus:           color.NRGBA{R: 0xe5, G: 0x48, B: 0x55, A: 0x55},
	theme.ColorNameHover:           color.NRGBA{R: 0xe5, G: 0x48, B: 0x55, A: 0x1f},
	theme.ColorNamePressed:         color.NRGBA{R: 0xe5, G: 0x48, B: 0x55, A: 0x38},
	theme.ColorNameSelection:       color.NRGBA{R: 0xe5, G: 0x48, B: 0x55, A: 0x3c},
	theme.ColorNameForeground:      color.NRGBA{R: 0xef, G: 0xea, B: 0xeb, A: 0xff},
	theme.ColorNamePlaceHolder:     color.NRGBA{R: 0xb0, G: 0xa4, B: 0xa7, A: 0xff},
	theme.ColorNameError:           color.NRGBA{R: 0xff, G: 0x70, B: 0x70, A: 0xff},
	theme.ColorNameSuccess:         color.NRGBA{R: 0x86, G: 0xc9, B: 0x9b, A: 0xff},
}

func newRecoilTheme() fyne.Theme {
	return &recoilTheme{Theme: theme.DarkTheme()}
}

func (t *recoilTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	if c, ok := recoilPalette[name]; ok {
		return c
	}
	return t.Theme.Color(name, variant)
}

func (t *recoilTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNamePadding || name == theme.SizeNameInnerPadding {
		return 7
	}
	return t.Theme.Size(name)
}

func normalizeCodeName(raw, fallback string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	if code, err := parseBindingCode(value); err == nil {
		return formatCodeName(code)
	}
	return strings.ToUpper(value)
}

// bindingLabels maps code names to the labels shown on the capture buttons.
var bindingLabels = map[string]string{
	"BTN_LEFT":       "Left Mouse Button",
	"BTN_RIGHT":      "Right Mouse Button",
	"BTN_MIDDLE":     "Middle Mouse Button",
	"BTN_SIDE":       "Side Mouse Button",
	"BTN_EXTRA":      "Side Mouse Button",
	"BTN_BACK":       "Back Mouse Button",
	"BTN_FORWARD":    "Forward Mouse Button",
	"KEY_LEFTCTRL":   "Left Ctrl",
	"KEY_RIGHTCTRL":  "Right Ctrl",
	"KEY_LEFTSHIFT":  "Left Shift",
	"KEY_RIGHTSHIFT": "Right Shift",
	"KEY_LEFTALT":    "Left Alt",
	"KEY_RIGHTALT":   "Right Alt",
	"KEY_LEFTMETA":   "Left Meta",
	"KEY_RIGHTMETA":  "Right Meta",
	"KEY_CAPSLOCK":   "Caps Lock",
	"KEY_ESC":        "Esc",
	"KEY_SPACE":      "Space",
	"KEY_ENTER":      "Enter",
	"KEY_TAB":        "Tab",
	"KEY_BACKSPACE":  "Backspace",
}

func displayCodeName(raw string) string {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if name == "" {
		return "-"
	}
	if label, ok := bindingLabels[name]; ok {
		return label
	}

	if btn, isBtn := strings.CutPrefix(name, "BTN_"); isBtn {
		return titleWord(btn) + " Button"
	}
	token, isKey := strings.CutPrefix(name, "KEY_")
	if !isKey {
		return name
	}
	if len(token) == 1 || (token[0] == 'F' && isDigits(token[1:])) {
		return token
	}
	return titleWord(token)
}

func titleWord(token string) string {
	if len(token) < 2 {
		return token
	}
	return token[:1] + strings.ToLower(token[1:])
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// uiLogPanel mirrors the tail of the logger output into the window. It stays
// inert unless debug logging is on, so the slider callbacks can feed it
// unconditionally.
type uiLogPanel struct {
	mu      sync.Mutex
	lines   []string
	enabled bool
	grid    *widget.TextGrid
	scroll  *container.Scroll
}

const uiLogHistory = 50

func newUILogPanel(enabled bool) *uiLogPanel {
	grid := widget.NewTextGrid()
	scroll := container.NewVScroll(grid)
	scroll.SetMinSize(fyne.NewSize(0, 150))
	return &uiLogPanel{enabled: enabled, grid: grid, scroll: scroll}
}

func (p *uiLogPanel) append(line string) {
	if !p.enabled {
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	p.mu.Lock()
	p.lines = append(p.lines, line)
	if n := len(p.lines); n > uiLogHistory {
		p.lines = p.lines[n-uiLogHistory:]
	}
	text := strings.Join(p.lines, "\n")
	p.mu.Unlock()

	fyne.Do(func() {
		p.grid.SetText(text)
		p.scroll.ScrollToBottom()
	})
}

func runUI(baseCfg config) error {
	fApp := app.New()
	fApp.Settings().SetTheme(newRecoilTheme())

	window := fApp.NewWindow("Fallen Recoil")
	window.Resize(fyne.NewSize(820, 560))
	window.SetFixedSize(true)
	window.CenterOnScreen()

	clamp := func(v, min, max float64) float64 {
		if v < min {
			return min
		}
		if v > max {
			return max
		}
		return v
	}

	startupEnabled := true
	settingsLoadWarning := ""

	xDefault := clamp(baseCfg.offsets.X, -20, 20)
	yDefault := clamp(baseCfg.offsets.Y, -20, 20)
	zDefault := clamp(baseCfg.offsets.Z, -10, 10)
	intervalDefault := clamp(float64(baseCfg.interval.Milliseconds()), 1, 100)
	crouchScaleDefault := clamp(baseCfg.crouchScale, 0, 1)

	triggerRaw := strings.TrimSpace(baseCfg.triggerRaw)
	if triggerRaw == "" {
		triggerRaw = "BTN_LEFT"
	}
	crouchRaw := strings.TrimSpace(baseCfg.crouchRaw)
	if crouchRaw == "" {
		crouchRaw = "KEY_LEFTCTRL"
	}
	activePreset := strings.TrimSpace(baseCfg.presetName)

	stored, err := loadUISettings()
	if err != nil {
		settingsLoadWarning = fmt.Sprintf("Failed to load saved settings: %v", err)
	} else if stored != nil {
		xDefault = clamp(stored.MoveX, -20, 20)
		yDefault = clamp(stored.MoveY, -20, 20)
		zDefault = clamp(stored.MoveZ, -10, 10)
		if stored.IntervalMS > 0 {
			intervalDefault = clamp(float64(stored.IntervalMS), 1, 100)
		}
		crouchScaleDefault = clamp(stored.CrouchScale, 0, 1)
		if value := strings.TrimSpace(stored.Trigger); value != "" {
			if _, parseErr := parseBindingCode(value); parseErr == nil {
				triggerRaw = value
			} else if settingsLoadWarning == "" {
				settingsLoadWarning = fmt.Sprintf("Saved trigger is invalid (%s); using default.", value)
			}
		}
		if value := strings.TrimSpace(stored.Crouch); value != "" {
			if _, parseErr := parseBindingCode(value); parseErr == nil {
				crouchRaw = value
			} else if settingsLoadWarning == "" {
				settingsLoadWarning = fmt.Sprintf("Saved crouch key is invalid (%s); using default.", value)
			}
		}
		if activePreset == "" {
			activePreset = strings.TrimSpace(stored.ActivePreset)
		}
		startupEnabled = stored.Enabled
	}
	triggerRaw = normalizeCodeName(triggerRaw, "BTN_LEFT")
	crouchRaw = normalizeCodeName(crouchRaw, "KEY_LEFTCTRL")

	var presetsMu sync.Mutex
	presets, presetsErr := loadPresets()
	if presetsErr != nil {
		presets = map[string]preset{}
		if settingsLoadWarning == "" {
			settingsLoadWarning = fmt.Sprintf("Failed to load presets: %v", presetsErr)
		}
	}

	xSlider := widget.NewSlider(-20, 20)
	xSlider.Step = 0.1
	xSlider.SetValue(xDefault)

	ySlider := widget.NewSlider(-20, 20)
	ySlider.Step = 0.1
	ySlider.SetValue(yDefault)

	zSlider := widget.NewSlider(-10, 10)
	zSlider.Step = 0.1
	zSlider.SetValue(zDefault)

	intervalSlider := widget.NewSlider(1, 100)
	intervalSlider.Step = 1
	intervalSlider.SetValue(intervalDefault)

	crouchScaleSlider := widget.NewSlider(0, 1)
	crouchScaleSlider.Step = 0.01
	crouchScaleSlider.SetValue(crouchScaleDefault)

	xValue := widget.NewLabel("")
	yValue := widget.NewLabel("")
	zValue := widget.NewLabel("")
	intervalValue := widget.NewLabel("")
	crouchScaleValue := widget.NewLabel("")
	for _, label := range []*widget.Label{xValue, yValue, zValue, intervalValue, crouchScaleValue} {
		label.Alignment = fyne.TextAlignTrailing
		label.TextStyle = fyne.TextStyle{Bold: true}
	}
	updateControlText := func() {
		xValue.SetText(fmt.Sprintf("%.1f px", xSlider.Value))
		yValue.SetText(fmt.Sprintf("%.1f px", ySlider.Value))
		zValue.SetText(fmt.Sprintf("%.1f steps", zSlider.Value))
		intervalValue.SetText(fmt.Sprintf("%d ms", int(math.Round(intervalSlider.Value))))
		crouchScaleValue.SetText(fmt.Sprintf("%.2f", crouchScaleSlider.Value))
	}
	updateControlText()

	persistUISettings := func() {}
	applyTuning := func() {}

	triggerCaptureBtn := widget.NewButton(displayCodeName(triggerRaw), nil)
	crouchCaptureBtn := widget.NewButton(displayCodeName(crouchRaw), nil)

	errorText := canvas.NewText("", nil)
	errorText.Color = theme.Color(theme.ColorNameError)
	if settingsLoadWarning != "" {
		errorText.Text = settingsLoadWarning
	}
	statusText := widget.NewLabel("Status: starting")
	statusText.TextStyle = fyne.TextStyle{Bold: true}
	debugLogs := debugLogsEnabled()
	logPanel := newUILogPanel(debugLogs)
	appendLogLine := logPanel.append
	if settingsLoadWarning != "" {
		appendLogLine("WARNING " + settingsLoadWarning)
	}

	enableToggleBtn := widget.NewButton("Disabled", nil)
	enableToggleBtn.Importance = widget.HighImportance
	triggerCaptureBtn.Importance = widget.MediumImportance
	crouchCaptureBtn.Importance = widget.MediumImportance
	initProgress := widget.NewProgressBarInfinite()
	initProgress.Hide()

	setEnabledStateUI := func(enabled bool) {
		if enabled {
			enableToggleBtn.SetText("Enabled")
		} else {
			enableToggleBtn.SetText("Disabled")
		}
	}

	type runtimeState struct {
		cfg          config
		runtime      compensatorRuntime
		stop         chan struct{}
		initializing bool
	}
	var stateMu sync.Mutex
	state := runtimeState{cfg: baseCfg}

	getState := func() (compensatorRuntime, config, bool) {
		stateMu.Lock()
		defer stateMu.Unlock()
		return state.runtime, state.cfg, state.initializing
	}

	setInitializing := func(v bool) {
		stateMu.Lock()
		state.initializing = v
		stateMu.Unlock()
	}

	setCurrentCfg := func(cfg config) {
		stateMu.Lock()
		state.cfg = cfg
		stateMu.Unlock()
	}

	setInitializingUI := func(v bool) {
		if v {
			initProgress.Show()
			return
		}
		initProgress.Hide()
	}

	reportUIError := func(err error) {
		errorText.Text = err.Error()
		errorText.Refresh()
		appendLogLine("ERROR " + err.Error())
	}

	applyTuning = func() {
		runtime, cfg, _ := getState()
		cfg.offsets = compensator.Offsets{X: xSlider.Value, Y: ySlider.Value, Z: zSlider.Value}
		cfg.interval = time.Duration(math.Round(intervalSlider.Value)) * time.Millisecond
		cfg.crouchScale = crouchScaleSlider.Value
		setCurrentCfg(cfg)

		if runtime == nil {
			return
		}
		if err := runtime.SetOffsets(cfg.offsets); err != nil {
			reportUIError(err)
			return
		}
		runtime.SetInterval(cfg.interval)
		if err := runtime.SetCrouchScale(cfg.crouchScale); err != nil {
			reportUIError(err)
		}
	}

	onTuningChanged := func(float64) {
		updateControlText()
		applyTuning()
		persistUISettings()
	}
	xSlider.OnChanged = onTuningChanged
	ySlider.OnChanged = onTuningChanged
	zSlider.OnChanged = onTuningChanged
	intervalSlider.OnChanged = onTuningChanged
	crouchScaleSlider.OnChanged = onTuningChanged

	stopRuntime := func() {
		stateMu.Lock()
		runtime, stop := state.runtime, state.stop
		state.runtime, state.stop = nil, nil
		stateMu.Unlock()

		if stop != nil {
			close(stop)
		}
		if runtime != nil {
			runtime.Stop()
		}
	}

	runRuntimeLoops := func(c compensatorRuntime, stopCh <-chan struct{}) {
		stateTicker := time.NewTicker(150 * time.Millisecond)
		lastEnabled := c.IsEnabled()
		defer stateTicker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-stateTicker.C:
				enabled := c.IsEnabled()
				active := c.TriggerActive()
				fyne.Do(func() {
					setEnabledStateUI(enabled)
					switch {
					case !enabled:
						statusText.SetText("Status: disabled")
					case active:
						statusText.SetText("Status: auto-compensation active")
					default:
						statusText.SetText("Status: armed (hold trigger)")
					}
					if enabled != lastEnabled {
						lastEnabled = enabled
						persistUISettings()
					}
				})
			}
		}
	}

	startRuntime := func(cfg config) error {
		logger := newSlogLogger(cfg.logLevel, appendLogLine)
		runtime, err := startCompensatorFromConfig(cfg, logger)
		if err != nil {
			return err
		}

		stop := make(chan struct{})
		stateMu.Lock()
		state.runtime, state.stop, state.cfg = runtime, stop, cfg
		stateMu.Unlock()

		go runRuntimeLoops(runtime, stop)

		fyne.Do(func() {
			errorText.Text = ""
			errorText.Refresh()
			setEnabledStateUI(runtime.IsEnabled())
			triggerCaptureBtn.SetText(displayCodeName(cfg.triggerRaw))
			crouchCaptureBtn.SetText(displayCodeName(cfg.crouchRaw))
		})
		return nil
	}

	describeStartError := func(err error) string {
		if isPermissionError(err) {
			return permissionDeniedHint()
		}
		if errors.Is(err, syscall.EBUSY) || strings.Contains(strings.ToLower(err.Error()), "device or resource busy") {
			return "Input device is in use by another app. Close the other app and try again."
		}
		return err.Error()
	}

	runRuntimeTaskAsync := func(task func() error) {
		if _, _, busy := getState(); busy {
			return
		}
		setInitializing(true)
		fyne.Do(func() {
			errorText.Text = ""
			errorText.Refresh()
			setInitializingUI(true)
		})

		go func() {
			err := task()
			fyne.Do(func() {
				setInitializing(false)
				setInitializingUI(false)
				if err != nil {
					errorText.Text = describeStartError(err)
					errorText.Refresh()
					appendLogLine("ERROR " + errorText.Text)
					return
				}
				errorText.Text = ""
				errorText.Refresh()
				if runtime, _, _ := getState(); runtime != nil {
					setEnabledStateUI(runtime.IsEnabled())
				}
				persistUISettings()
			})
		}()
	}

	buildCfgFromUI := func() (config, error) {
		_, cfg, _ := getState()

		trigger := strings.TrimSpace(cfg.triggerRaw)
		crouch := strings.TrimSpace(cfg.crouchRaw)
		if trigger == "" {
			trigger = "BTN_LEFT"
		}
		if crouch == "" {
			crouch = "KEY_LEFTCTRL"
		}

		triggerCode, err := parseBindingCode(trigger)
		if err != nil {
			return cfg, err
		}
		crouchCode, err := parseBindingCode(crouch)
		if err != nil {
			return cfg, err
		}
		if triggerCode == crouchCode {
			return cfg, fmt.Errorf("crouch key must be different from trigger")
		}

		cfg.triggerRaw = trigger
		cfg.crouchRaw = crouch
		cfg.triggerCode = triggerCode
		cfg.crouchCode = crouchCode
		cfg.offsets = compensator.Offsets{X: xSlider.Value, Y: ySlider.Value, Z: zSlider.Value}
		cfg.interval = time.Duration(math.Round(intervalSlider.Value)) * time.Millisecond
		cfg.crouchScale = crouchScaleSlider.Value
		return cfg, nil
	}

	persistUISettings = func() {
		runtime, cfg, _ := getState()
		enabled := startupEnabled
		if runtime != nil {
			enabled = runtime.IsEnabled()
		}

		presetsMu.Lock()
		active := activePreset
		presetsMu.Unlock()

		settings := uiSettings{
			MoveX:        xSlider.Value,
			MoveY:        ySlider.Value,
			MoveZ:        zSlider.Value,
			IntervalMS:   int(math.Round(intervalSlider.Value)),
			CrouchScale:  crouchScaleSlider.Value,
			Trigger:      strings.TrimSpace(cfg.triggerRaw),
			Crouch:       strings.TrimSpace(cfg.crouchRaw),
			Enabled:      enabled,
			ActivePreset: active,
		}

		if err := saveUISettings(settings); err != nil {
			errorText.Text = fmt.Sprintf("Failed to save settings: %v", err)
			errorText.Refresh()
		}
	}

	// Preset controls: the dropdown recalls a saved offset triple, the entry
	// plus Save stores the current sliders under a name.
	presetNameEntry := widget.NewEntry()
	presetNameEntry.SetPlaceHolder("Preset name")

	var presetSelect *widget.Select
	refreshPresetOptions := func() {
		presetsMu.Lock()
		names := sortedPresetNames(presets)
		active := activePreset
		presetsMu.Unlock()

		presetSelect.Options = names
		if active != "" {
			presetSelect.Selected = active
		}
		presetSelect.Refresh()
	}

	presetSelect = widget.NewSelect(nil, func(name string) {
		presetsMu.Lock()
		p, ok := presets[name]
		if ok {
			activePreset = name
		}
		presetsMu.Unlock()
		if !ok {
			return
		}

		xSlider.SetValue(clamp(p.MoveX, -20, 20))
		ySlider.SetValue(clamp(p.MoveY, -20, 20))
		zSlider.SetValue(clamp(p.MoveZ, -10, 10))
		presetNameEntry.SetText(name)
		appendLogLine("INFO Loaded preset " + name)
	})
	refreshPresetOptions()

	savePresetBtn := widget.NewButton("Save", func() {
		name := strings.TrimSpace(presetNameEntry.Text)
		if name == "" {
			name = strings.TrimSpace(presetSelect.Selected)
		}
		if name == "" {
			reportUIError(fmt.Errorf("enter a preset name first"))
			return
		}

		presetsMu.Lock()
		presets[name] = preset{MoveX: xSlider.Value, MoveY: ySlider.Value, MoveZ: zSlider.Value}
		activePreset = name
		err := savePresets(presets)
		presetsMu.Unlock()
		if err != nil {
			reportUIError(err)
			return
		}

		refreshPresetOptions()
		persistUISettings()
		appendLogLine("INFO Saved preset " + name)
	})

	deletePresetBtn := widget.NewButton("Delete", func() {
		name := strings.TrimSpace(presetSelect.Selected)
		if name == "" {
			return
		}

		presetsMu.Lock()
		delete(presets, name)
		if activePreset == name {
			activePreset = ""
		}
		err := savePresets(presets)
		presetsMu.Unlock()
		if err != nil {
			reportUIError(err)
			return
		}

		presetSelect.ClearSelected()
		refreshPresetOptions()
		persistUISettings()
		appendLogLine("INFO Deleted preset " + name)
	})

	enableToggleBtn.OnTapped = func() {
		runtime, _, _ := getState()
		if runtime == nil {
			return
		}
		runtime.SetEnabled(!runtime.IsEnabled())
		setEnabledStateUI(runtime.IsEnabled())
		persistUISettings()
	}

	// captureBinding drives both capture buttons: try the live runtime stream
	// first, fall back to a global capture with a runtime restart.
	captureBinding := func(label string, button *widget.Button, apply func(cfg *config, code uint16), rebindLive func(runtime compensatorRuntime, code uint16), conflictsWith func(cfg config, code uint16) bool) {
		runtime, _, _ := getState()
		if runtime == nil {
			return
		}

		cfg, err := buildCfgFromUI()
		if err != nil {
			reportUIError(err)
			return
		}

		appendLogLine("INFO Waiting for " + label + " input")
		runRuntimeTaskAsync(func() error {
			prevRuntime, prevCfg, _ := getState()
			if prevRuntime == nil {
				return fmt.Errorf("runtime is not initialized")
			}
			prevEnabled := prevRuntime.IsEnabled()
			prevCfg.startEnabled = prevEnabled

			prevLabelText := button.Text
			capturedFromRuntime := true
			code, err := prevRuntime.CaptureNextKeyCode(2 * time.Second)
			if err != nil {
				capturedFromRuntime = false
				stopRuntime()
				code, err = captureNextCode(cfg.backend, cfg.devicePath, 10*time.Second)
				if err != nil {
					_ = startRuntime(prevCfg)
					return err
				}
			}
			if conflictsWith(cfg, code) {
				if !capturedFromRuntime {
					_ = startRuntime(prevCfg)
				}
				return fmt.Errorf("captured %s %s conflicts with the other binding; choose a different key/button", label, formatCodeName(code))
			}

			apply(&cfg, code)
			cfg.startEnabled = prevEnabled

			fyne.DoAndWait(func() {
				button.SetText(displayCodeName(formatCodeName(code)))
			})

			if capturedFromRuntime {
				rebindLive(prevRuntime, code)
				setCurrentCfg(cfg)
				appendLogLine("INFO Captured " + label + " " + formatCodeName(code))
				return nil
			}

			stopRuntime()
			if err := startRuntime(cfg); err != nil {
				_ = startRuntime(prevCfg)
				fyne.DoAndWait(func() {
					button.SetText(prevLabelText)
				})
				return err
			}

			appendLogLine("INFO Captured " + label + " " + formatCodeName(code))
			return nil
		})
	}

	triggerCaptureBtn.OnTapped = func() {
		captureBinding(
			"trigger",
			triggerCaptureBtn,
			func(cfg *config, code uint16) {
				cfg.triggerCode = code
				cfg.triggerRaw = formatCodeName(code)
			},
			func(runtime compensatorRuntime, code uint16) {
				runtime.SetTriggerCode(code)
			},
			func(cfg config, code uint16) bool {
				return code == cfg.crouchCode
			},
		)
	}

	crouchCaptureBtn.OnTapped = func() {
		captureBinding(
			"crouch key",
			crouchCaptureBtn,
			func(cfg *config, code uint16) {
				cfg.crouchCode = code
				cfg.crouchRaw = formatCodeName(code)
			},
			func(runtime compensatorRuntime, code uint16) {
				runtime.SetCrouchCode(code)
			},
			func(cfg config, code uint16) bool {
				return code == cfg.triggerCode
			},
		)
	}

	startupCfg, err := buildCfgFromUI()
	if err != nil {
		return err
	}
	startupCfg.startEnabled = startupEnabled

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var closeOnce sync.Once
	cleanup := func() {
		closeOnce.Do(stopRuntime)
	}

	// quitNow must run on the fyne goroutine; falls back to closing the
	// window directly when the app is already tearing down.
	quitNow := func() {
		persistUISettings()
		cleanup()
		if currentApp := fyne.CurrentApp(); currentApp != nil {
			currentApp.Quit()
			return
		}
		window.SetCloseIntercept(nil)
		window.Close()
	}
	requestQuit := func() { fyne.Do(quitNow) }
	window.SetCloseIntercept(quitNow)

	go func() {
		<-sigCh
		requestQuit()
	}()

	// Some GUI backends swallow SIGINT and deliver Ctrl+C as a raw ETX byte
	// on stdin instead.
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && buf[0] == 0x03 {
				requestQuit()
				return
			}
		}
	}()

	titleText := canvas.NewText("FALLEN RECOIL", accentColor)
	titleText.TextStyle = fyne.TextStyle{Bold: true}
	titleText.TextSize = 30

	accentLine := canvas.NewRectangle(accentColor)
	accentLine.SetMinSize(fyne.NewSize(220, 3))

	newSliderControl := func(label string, value *widget.Label, slider *widget.Slider) fyne.CanvasObject {
		title := widget.NewLabel(label)
		title.TextStyle = fyne.TextStyle{Bold: true}
		head := container.NewBorder(nil, nil, title, value, nil)
		return container.NewVBox(head, slider)
	}

	offsetControls := container.NewVBox(
		newSliderControl("X offset", xValue, xSlider),
		newSliderControl("Y offset", yValue, ySlider),
		newSliderControl("Z scroll", zValue, zSlider),
	)
	timingControls := container.NewVBox(
		newSliderControl("Interval", intervalValue, intervalSlider),
		newSliderControl("Crouch scale", crouchScaleValue, crouchScaleSlider),
	)
	keybindControls := widget.NewForm(
		widget.NewFormItem("Trigger", triggerCaptureBtn),
		widget.NewFormItem("Crouch", crouchCaptureBtn),
	)
	presetControls := container.NewVBox(
		presetSelect,
		presetNameEntry,
		container.NewGridWithColumns(2, savePresetBtn, deletePresetBtn),
	)

	offsetsCard := widget.NewCard("Offsets per tick", "", offsetControls)
	timingCard := widget.NewCard("Timing", "", timingControls)
	keybindCard := widget.NewCard("Keybinds", "", keybindControls)
	presetCard := widget.NewCard("Presets", "", presetControls)
	controlsRow := container.NewGridWithColumns(2,
		offsetsCard,
		container.NewVBox(timingCard, keybindCard),
	)

	mainContent := container.NewVBox(
		titleText,
		accentLine,
		controlsRow,
		presetCard,
		statusText,
		errorText,
		initProgress,
		enableToggleBtn,
	)
	mainPanel := container.NewPadded(mainContent)

	var rootContent fyne.CanvasObject = mainPanel
	if debugLogs {
		logsCard := widget.NewCard("Logs", "", logPanel.scroll)
		split := container.NewVSplit(mainPanel, logsCard)
		split.SetOffset(0.68)
		rootContent = split
	}

	setInitializingUI(true)
	appendLogLine("INFO Initializing input devices...")
	runRuntimeTaskAsync(func() error {
		if err := startRuntime(startupCfg); err != nil {
			return err
		}
		appendLogLine("INFO Initialization complete")
		return nil
	})

	window.SetContent(rootContent)
	window.ShowAndRun()
	cleanup()
	return nil
}
