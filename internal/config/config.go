// Package config loads the enclosure-alarm configuration from YAML.
// Keys missing from the file keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/enclosure-alarm/internal/gpio"
	"github.com/sweeney/enclosure-alarm/internal/logic"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full daemon configuration.
type Config struct {
	GPIO       GPIO       `yaml:"gpio"`
	ADC        ADC        `yaml:"adc"`
	Ultrasonic Ultrasonic `yaml:"ultrasonic"`
	Pressure   Pressure   `yaml:"pressure"`
	ModeInput  ModeInput  `yaml:"mode_input"`
	Alarm      Alarm      `yaml:"alarm"`
	Audio      Audio      `yaml:"audio"`
	Log        Log        `yaml:"log"`

	Poll      time.Duration `yaml:"poll"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// GPIO selects the chip and BCM pin numbers.
type GPIO struct {
	Chip     string        `yaml:"chip"`
	Debounce time.Duration `yaml:"debounce"`
	Pins     Pins          `yaml:"pins"`
}

// Pins are BCM line offsets.
type Pins struct {
	Red     int    `yaml:"red"`
	Green   int    `yaml:"green"`
	Yellow  int    `yaml:"yellow"`
	Beeper  int    `yaml:"beeper"`
	Trigger int    `yaml:"trigger"`
	Echo    int    `yaml:"echo"`
	SwitchA int    `yaml:"switch_a"`
	SwitchB int    `yaml:"switch_b"`
	ModeIn  [2]int `yaml:"mode_in"`
	ModeOut [2]int `yaml:"mode_out"`
}

// ADC configures the MCP3008.
type ADC struct {
	Port         string `yaml:"port"`
	Channel      int    `yaml:"channel"`
	Differential bool   `yaml:"differential"`
}

// Ultrasonic configures the ranger and its filter.
type Ultrasonic struct {
	PulseWidth  time.Duration `yaml:"pulse_width"`
	EchoTimeout time.Duration `yaml:"echo_timeout"`
	Threshold   time.Duration `yaml:"threshold"`
	Window      int           `yaml:"window"`
}

// Pressure configures the pressure filter.
type Pressure struct {
	Threshold int `yaml:"threshold"`
}

// ModeInput configures how the companion mode lines are read.
type ModeInput struct {
	Latched bool `yaml:"latched"`
}

// Alarm configures the triggered-state siren.
type Alarm struct {
	SirenHz float64 `yaml:"siren_hz"` // 0 disables

	// HardwarePWM drives the beeper pin through the SoC's PWM block. When
	// the pin cannot be opened that way the software waveform is used.
	HardwarePWM bool `yaml:"hardware_pwm"`
}

// Audible siren range accepted by Validate.
const (
	MinSirenHz = 20
	MaxSirenHz = 20000
)

// Audio configures cue playback.
type Audio struct {
	Enabled   bool   `yaml:"enabled"`
	Command   string `yaml:"command"`
	MixerInit bool   `yaml:"mixer_init"`
	Alarm     string `yaml:"alarm"`
	Working   string `yaml:"working"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration matching the enclosure's wiring.
func Default() Config {
	return Config{
		GPIO: GPIO{
			Chip:     "gpiochip0",
			Debounce: 50 * time.Millisecond,
			Pins: Pins{
				Red:     gpio.DefaultPinRed,
				Green:   gpio.DefaultPinGreen,
				Yellow:  gpio.DefaultPinYellow,
				Beeper:  gpio.DefaultPinBeeper,
				Trigger: gpio.DefaultPinTrigger,
				Echo:    gpio.DefaultPinEcho,
				SwitchA: gpio.DefaultPinSwitchA,
				SwitchB: gpio.DefaultPinSwitchB,
				ModeIn:  [2]int{gpio.DefaultPinModeIn1, gpio.DefaultPinModeIn2},
				ModeOut: [2]int{gpio.DefaultPinModeOut1, gpio.DefaultPinModeOut2},
			},
		},
		ADC: ADC{Port: "SPI0.1", Channel: 0, Differential: true},
		Ultrasonic: Ultrasonic{
			PulseWidth:  100 * time.Microsecond,
			EchoTimeout: 50 * time.Millisecond,
			Threshold:   logic.DefaultUltrasonicThreshold,
			Window:      logic.DefaultWindowSize,
		},
		Pressure: Pressure{Threshold: logic.DefaultPressureThreshold},
		Alarm:    Alarm{HardwarePWM: true},
		Audio: Audio{
			Enabled:   true,
			Command:   "aplay",
			MixerInit: true,
			Alarm:     "alarm.wav",
			Working:   "working.wav",
		},
		Log:       Log{Level: "info", Format: "json"},
		Poll:      100 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
	}
}

// Load reads path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if c.GPIO.Chip == "" {
		bad("gpio.chip is empty")
	}
	if c.GPIO.Debounce < 0 {
		bad("gpio.debounce %v is negative", c.GPIO.Debounce)
	}
	seen := make(map[int]string)
	for _, np := range c.GPIO.Pins.named() {
		if np.pin < 0 {
			bad("gpio.pins.%s %d is negative", np.name, np.pin)
			continue
		}
		if other, ok := seen[np.pin]; ok {
			bad("gpio.pins.%s and gpio.pins.%s share line %d", other, np.name, np.pin)
			continue
		}
		seen[np.pin] = np.name
	}

	if c.ADC.Port == "" {
		bad("adc.port is empty")
	}
	if c.ADC.Channel < 0 || c.ADC.Channel > 7 {
		bad("adc.channel %d outside 0-7", c.ADC.Channel)
	}

	if c.Ultrasonic.PulseWidth <= 0 {
		bad("ultrasonic.pulse_width must be positive")
	}
	if c.Ultrasonic.EchoTimeout <= 0 {
		bad("ultrasonic.echo_timeout must be positive")
	}
	if c.Ultrasonic.Threshold <= 0 {
		bad("ultrasonic.threshold must be positive")
	}
	if c.Ultrasonic.Window < 1 {
		bad("ultrasonic.window %d must be at least 1", c.Ultrasonic.Window)
	}
	if c.Pressure.Threshold < 0 || c.Pressure.Threshold > 1023 {
		bad("pressure.threshold %d outside 0-1023", c.Pressure.Threshold)
	}
	if c.Alarm.SirenHz != 0 && (c.Alarm.SirenHz < MinSirenHz || c.Alarm.SirenHz > MaxSirenHz) {
		bad("alarm.siren_hz %v outside %d-%d", c.Alarm.SirenHz, MinSirenHz, MaxSirenHz)
	}
	if c.Audio.Enabled && (c.Audio.Alarm == "" || c.Audio.Working == "") {
		bad("audio.alarm and audio.working are required when audio is enabled")
	}
	if c.Poll <= 0 {
		bad("poll must be positive")
	}
	if c.Heartbeat < 0 {
		bad("heartbeat %v is negative", c.Heartbeat)
	}

	return errors.Join(errs...)
}

type namedPin struct {
	name string
	pin  int
}

func (p Pins) named() []namedPin {
	return []namedPin{
		{"red", p.Red},
		{"green", p.Green},
		{"yellow", p.Yellow},
		{"beeper", p.Beeper},
		{"trigger", p.Trigger},
		{"echo", p.Echo},
		{"switch_a", p.SwitchA},
		{"switch_b", p.SwitchB},
		{"mode_in[0]", p.ModeIn[0]},
		{"mode_in[1]", p.ModeIn[1]},
		{"mode_out[0]", p.ModeOut[0]},
		{"mode_out[1]", p.ModeOut[1]},
	}
}
