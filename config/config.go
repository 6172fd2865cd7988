package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingEncoder = errors.New("missing encoder")
	ErrBadPin         = errors.New("invalid pin name")
	ErrBadAddress     = errors.New("address outside the 7-bit range")
	ErrBadSampler     = errors.New("unknown sampler")
	ErrPinConflict    = errors.New("pin assigned twice")
	ErrNotAdjacent    = errors.New("pio sampler needs adjacent A and B pins")
)

// DefaultAddress is the 7-bit form of the 0xEC address byte
const DefaultAddress = 0x76

// LoadConfig parses a JSON configuration and returns a validated BoardConfig
func LoadConfig(jsonData []byte) (*BoardConfig, error) {
	var config BoardConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	return finish(&config)
}

func finish(config *BoardConfig) (*BoardConfig, error) {
	applyDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyDefaults fills in missing configuration values with the reference
// board wiring
func applyDefaults(config *BoardConfig) {
	def := DefaultConfig()

	if config.Address == 0 {
		config.Address = def.Address
	}
	if config.SDAPin == "" {
		config.SDAPin = def.SDAPin
	}
	if config.SCLPin == "" {
		config.SCLPin = def.SCLPin
	}
	if config.Sampler == "" {
		config.Sampler = def.Sampler
	}
	if config.Encoders == nil {
		config.Encoders = def.Encoders
	}

	for name, enc := range config.Encoders {
		if enc.PullUp == nil {
			on := true
			enc.PullUp = &on
		}
		config.Encoders[name] = enc
	}
}

// Validate checks addresses, pin names and that both wheels are present
func (c *BoardConfig) Validate() error {
	if c.Address > 0x7F {
		return fmt.Errorf("%w: 0x%02X", ErrBadAddress, c.Address)
	}
	if c.Sampler != SamplerIRQ && c.Sampler != SamplerPIO {
		return fmt.Errorf("%w: %q", ErrBadSampler, c.Sampler)
	}

	used := make(map[uint8]string)
	claim := func(what, name string) error {
		pin, err := ParsePin(name)
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if prev, ok := used[pin]; ok {
			return fmt.Errorf("%w: %s used by %s and %s", ErrPinConflict, name, prev, what)
		}
		used[pin] = what
		return nil
	}

	if err := claim("sda", c.SDAPin); err != nil {
		return err
	}
	if err := claim("scl", c.SCLPin); err != nil {
		return err
	}
	for _, wheel := range []string{WheelRight, WheelLeft} {
		enc, ok := c.Encoders[wheel]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingEncoder, wheel)
		}
		if err := claim(wheel+".a", enc.APin); err != nil {
			return err
		}
		if err := claim(wheel+".b", enc.BPin); err != nil {
			return err
		}
		if c.Sampler == SamplerPIO {
			a, b, _ := c.Lines(wheel)
			if a+1 != b && b+1 != a {
				return fmt.Errorf("%w: %s on %s/%s", ErrNotAdjacent, wheel, enc.APin, enc.BPin)
			}
		}
	}
	return nil
}

// Lines returns the A and B pin numbers of a wheel, honoring Swap
func (c *BoardConfig) Lines(wheel string) (a, b uint8, err error) {
	enc, ok := c.Encoders[wheel]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrMissingEncoder, wheel)
	}
	if a, err = ParsePin(enc.APin); err != nil {
		return 0, 0, err
	}
	if b, err = ParsePin(enc.BPin); err != nil {
		return 0, 0, err
	}
	if enc.Swap {
		a, b = b, a
	}
	return a, b, nil
}

// ParsePin converts a pin name such as "gpio6" or "GP6" to its number
func ParsePin(name string) (uint8, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(s, "gpio"):
		s = s[4:]
	case strings.HasPrefix(s, "gp"):
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 29 {
		return 0, fmt.Errorf("%w: %q", ErrBadPin, name)
	}
	return uint8(n), nil
}

// DefaultConfig returns the reference wiring: I2C0 on GP4/GP5, right
// encoder on GP6/GP7, left encoder on GP8/GP9
func DefaultConfig() *BoardConfig {
	on := true
	return &BoardConfig{
		Address: DefaultAddress,
		I2CBus:  0,
		SDAPin:  "gpio4",
		SCLPin:  "gpio5",
		Encoders: map[string]EncoderConfig{
			WheelRight: {APin: "gpio6", BPin: "gpio7", PullUp: &on},
			WheelLeft:  {APin: "gpio8", BPin: "gpio9", PullUp: &on},
		},
		Sampler:             SamplerIRQ,
		TelemetryIntervalMs: 100,
	}
}
