// Command enclosure-alarm watches an enclosure with an ultrasonic ranger and a
// pressure pad, and raises the alarm when it is breached while armed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/enclosure-alarm/internal/adc"
	"github.com/sweeney/enclosure-alarm/internal/audio"
	"github.com/sweeney/enclosure-alarm/internal/config"
	"github.com/sweeney/enclosure-alarm/internal/controller"
	"github.com/sweeney/enclosure-alarm/internal/gpio"
	"github.com/sweeney/enclosure-alarm/internal/logging"
	"github.com/sweeney/enclosure-alarm/internal/logic"
	"github.com/sweeney/enclosure-alarm/internal/sensor"
	"github.com/sweeney/enclosure-alarm/internal/status"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, opts.printState, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

// options holds command-line flags. Flags that were not given leave the
// config file value alone.
type options struct {
	configPath string
	printState bool
	set        map[string]bool

	logLevel  string
	logFormat string
	heartbeat time.Duration
	noAudio   bool
	latched   bool
	sirenHz   float64
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("enclosure-alarm", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "YAML config file (empty for built-in defaults)")
	fs.BoolVar(&o.printState, "print-state", false, "Print a status snapshot and exit")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "json", "Log format: json or console")
	fs.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.BoolVar(&o.noAudio, "no-audio", false, "Disable audio cues")
	fs.BoolVar(&o.latched, "latched-mode-input", false, "Act on companion mode input only when it changes")
	fs.Float64Var(&o.sirenHz, "siren-hz", 0, "Beeper siren frequency while triggered (0 to disable)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", fs.Args())
		fmt.Fprintln(fs.Output(), err)
		return options{}, err
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overrides cfg with the flags that were given.
func (o options) apply(cfg *config.Config) {
	if o.set["log-level"] {
		cfg.Log.Level = o.logLevel
	}
	if o.set["log-format"] {
		cfg.Log.Format = o.logFormat
	}
	if o.set["heartbeat"] {
		cfg.Heartbeat = o.heartbeat
	}
	if o.set["no-audio"] {
		cfg.Audio.Enabled = !o.noAudio
	}
	if o.set["latched-mode-input"] {
		cfg.ModeInput.Latched = o.latched
	}
	if o.set["siren-hz"] {
		cfg.Alarm.SirenHz = o.sirenHz
	}
}

func run(cfg config.Config, printState bool, log *zap.Logger) error {
	pins := cfg.GPIO.Pins

	chip, err := gpio.NewChip(cfg.GPIO.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := chip.Close(); err != nil {
			log.Error("release gpio", zap.Error(err))
		}
	}()

	// Registered before any line is claimed so an early signal still
	// releases what was claimed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	conv, err := adc.Open(cfg.ADC.Port, adc.DefaultSpeed)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer conv.Close()

	mode := adc.SingleEnded
	if cfg.ADC.Differential {
		mode = adc.Differential
	}
	pressure := sensor.NewPressureReader(conv, adc.Channel(cfg.ADC.Channel), mode)

	modeIn, err := chip.PairInput(pins.ModeIn)
	if err != nil {
		return fmt.Errorf("claim mode input: %w", err)
	}
	echo, err := chip.Input(pins.Echo)
	if err != nil {
		return fmt.Errorf("claim echo: %w", err)
	}
	trig, err := chip.Output(pins.Trigger, false)
	if err != nil {
		return fmt.Errorf("claim trigger: %w", err)
	}
	ranger := sensor.NewRanger(gpio.NewPulser(trig), echo, cfg.Ultrasonic.PulseWidth, cfg.Ultrasonic.EchoTimeout)

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))

	ctx := context.Background()
	if printState {
		return printSnapshot(ctx, os.Stdout, tracker, modeIn, pressure, ranger)
	}

	red, err := chip.Output(pins.Red, false)
	if err != nil {
		return fmt.Errorf("claim red: %w", err)
	}
	green, err := chip.Output(pins.Green, false)
	if err != nil {
		return fmt.Errorf("claim green: %w", err)
	}
	yellow, err := chip.Output(pins.Yellow, false)
	if err != nil {
		return fmt.Errorf("claim yellow: %w", err)
	}
	beeper, err := openBeeper(chip, pins.Beeper, cfg.Alarm.HardwarePWM, log)
	if err != nil {
		return err
	}
	defer beeper.DisablePeriodic()

	link, err := chip.PairOutput(pins.ModeOut, [2]bool{})
	if err != nil {
		return fmt.Errorf("claim companion link: %w", err)
	}

	player := newPlayer(ctx, cfg.Audio, log)
	defer player.Close()

	ctrl := controller.New(controller.Deps{
		Beeper:     beeper,
		Ranger:     ranger,
		Pressure:   pressure,
		Indicators: controller.Indicators{Red: red, Green: green, Yellow: yellow},
		Link:       link,
		ModeInput:  modeIn,
		Audio:      player,
		Tracker:    tracker,
		Log:        log,
	}, controllerOptions(cfg))

	arm := sensor.NewSwitch("arm")
	arm.SetOnRising(func() { ctrl.Arm() })
	if _, err := chip.WatchEdges(pins.SwitchA, cfg.GPIO.Debounce, arm.Handle); err != nil {
		return fmt.Errorf("claim arm switch: %w", err)
	}
	disarm := sensor.NewSwitch("disarm")
	disarm.SetOnRising(func() { ctrl.Disarm() })
	if _, err := chip.WatchEdges(pins.SwitchB, cfg.GPIO.Debounce, disarm.Handle); err != nil {
		return fmt.Errorf("claim disarm switch: %w", err)
	}

	if s, ok := interrupted(sigCh); ok {
		log.Info("received signal during startup", zap.String("signal", signalName(s)))
		return nil
	}

	ctrl.Start()
	ctrl.Prime(ctx)

	log.Info("startup",
		zap.String("chip", cfg.GPIO.Chip),
		zap.String("adc", cfg.ADC.Port),
		zap.Duration("poll", cfg.Poll),
		zap.Duration("heartbeat", cfg.Heartbeat),
		zap.Any("status", json.RawMessage(status.FormatStatusEvent(ctrl.Snapshot(), "STARTUP", ""))))

	return runLoop(ctx, ctrl, sigCh, log)
}

// runLoop runs the controller until a signal arrives, then waits for it
// to stop so resources are released after the last transition.
func runLoop(ctx context.Context, ctrl *controller.Controller, sig <-chan os.Signal, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	select {
	case s := <-sig:
		reason := signalName(s)
		log.Info("received signal, shutting down", zap.String("signal", reason))
		cancel()
		err := <-done
		log.Info("shutdown",
			zap.Any("status", json.RawMessage(status.FormatStatusEvent(ctrl.Snapshot(), "SHUTDOWN", reason))))
		return err

	case err := <-done:
		return err
	}
}

// interrupted reports a signal that arrived before the loop started.
func interrupted(sig <-chan os.Signal) (os.Signal, bool) {
	select {
	case s := <-sig:
		return s, true
	default:
		return nil, false
	}
}

// openBeeper prefers the SoC's PWM block when asked for, and falls back to
// a claimed line driven by the software waveform.
func openBeeper(chip *gpio.Chip, pin int, hardware bool, log *zap.Logger) (controller.Beeper, error) {
	if hardware {
		h, err := gpio.OpenHardwareBeeper(pin)
		if err == nil {
			return h, nil
		}
		log.Warn("hardware pwm unavailable, using software waveform", zap.Int("pin", pin), zap.Error(err))
	}
	line, err := chip.Output(pin, false)
	if err != nil {
		return nil, fmt.Errorf("claim beeper: %w", err)
	}
	return gpio.NewPulser(line), nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printSnapshot samples each input once and writes the status as JSON.
func printSnapshot(ctx context.Context, w io.Writer, tracker *status.Tracker, modeIn gpio.PairInput, pressure controller.PressureSensor, ranger controller.RangeFinder) error {
	bits, err := modeIn.Read()
	if err != nil {
		return fmt.Errorf("read mode input: %w", err)
	}
	tracker.SetModeInput(logic.CodeFromBits(bits))

	v, err := pressure.Read()
	if err != nil {
		return err
	}
	tracker.SetPressure(logic.PressureReading{Value: v})

	rt, err := ranger.Measure(ctx)
	if err != nil && !errors.Is(err, sensor.ErrNoEcho) {
		return fmt.Errorf("measure range: %w", err)
	}
	tracker.SetUltrasonic(logic.UltrasonicReading{RoundTrip: rt})

	_, err = fmt.Fprintf(w, "%s\n", status.FormatJSON(tracker.Snapshot()))
	return err
}

func newPlayer(ctx context.Context, cfg config.Audio, log *zap.Logger) audio.Player {
	if !cfg.Enabled {
		return audio.Nop{}
	}
	if cfg.MixerInit {
		if err := audio.InitMixer(ctx); err != nil {
			log.Warn("mixer init failed", zap.Error(err))
		}
	}
	return audio.NewAplay(cfg.Command, map[logic.Cue]string{
		logic.CueAlarm:   cfg.Alarm,
		logic.CueWorking: cfg.Working,
	}, log.Named("audio"))
}

func controllerOptions(cfg config.Config) controller.Options {
	o := controller.DefaultOptions()
	o.WindowSize = cfg.Ultrasonic.Window
	o.UltrasonicThreshold = cfg.Ultrasonic.Threshold
	o.PressureThreshold = cfg.Pressure.Threshold
	o.Poll = cfg.Poll
	o.Heartbeat = cfg.Heartbeat
	o.ModeInputLatched = cfg.ModeInput.Latched
	o.SirenHz = cfg.Alarm.SirenHz
	return o
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:              cfg.Poll.Milliseconds(),
		HeartbeatMs:         cfg.Heartbeat.Milliseconds(),
		UltrasonicThreshold: cfg.Ultrasonic.Threshold,
		PressureThreshold:   cfg.Pressure.Threshold,
		WindowSize:          cfg.Ultrasonic.Window,
		ModeInputLatched:    cfg.ModeInput.Latched,
		SirenHz:             cfg.Alarm.SirenHz,
	}
}
