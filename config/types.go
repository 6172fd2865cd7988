package config

// EncoderConfig represents the two input lines of one wheel encoder
type EncoderConfig struct {
	APin string `json:"a_pin" yaml:"a_pin"`
	BPin string `json:"b_pin" yaml:"b_pin"`

	// Swap exchanges A and B, reversing the count direction
	Swap bool `json:"swap" yaml:"swap"`
	// PullUp enables the internal pull-up, default on
	PullUp *bool `json:"pull_up" yaml:"pull_up"`
}

// BoardConfig represents the complete board configuration
type BoardConfig struct {
	Address uint8  `json:"address" yaml:"address"` // 7-bit
	I2CBus  int    `json:"i2c_bus" yaml:"i2c_bus"` // 0 or 1
	SDAPin  string `json:"sda_pin" yaml:"sda_pin"`
	SCLPin  string `json:"scl_pin" yaml:"scl_pin"`

	Encoders map[string]EncoderConfig `json:"encoders" yaml:"encoders"` // "right", "left"

	// Edge source: "irq" (GPIO interrupts) or "pio" (PIO state machine)
	Sampler string `json:"sampler" yaml:"sampler"`

	// Telemetry frame period on the debug port, 0 disables
	TelemetryIntervalMs int  `json:"telemetry_interval_ms" yaml:"telemetry_interval_ms"`
	Debug               bool `json:"debug" yaml:"debug"`
}

// Sampler backends
const (
	SamplerIRQ = "irq"
	SamplerPIO = "pio"
)

// Wheel names used as Encoders keys
const (
	WheelRight = "right"
	WheelLeft  = "left"
)
