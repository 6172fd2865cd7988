package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Address != DefaultAddress {
		t.Errorf("Expected address 0x%02X, got 0x%02X", DefaultAddress, cfg.Address)
	}
	if cfg.Sampler != SamplerIRQ {
		t.Errorf("Expected sampler %q, got %q", SamplerIRQ, cfg.Sampler)
	}
	a, b, err := cfg.Lines(WheelLeft)
	if err != nil || a != 8 || b != 9 {
		t.Errorf("Left lines: got %d,%d err=%v", a, b, err)
	}
	if pu := cfg.Encoders[WheelRight].PullUp; pu == nil || !*pu {
		t.Error("Pull-up should default on")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	data := []byte(`{
		"address": 32,
		"i2c_bus": 1,
		"sda_pin": "GP2",
		"scl_pin": "GP3",
		"sampler": "pio",
		"encoders": {
			"right": {"a_pin": "gpio10", "b_pin": "gpio11", "pull_up": false},
			"left":  {"a_pin": "gpio12", "b_pin": "gpio13", "swap": true}
		}
	}`)
	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Address != 0x20 || cfg.I2CBus != 1 || cfg.Sampler != SamplerPIO {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if pu := cfg.Encoders[WheelRight].PullUp; pu == nil || *pu {
		t.Error("Explicit pull_up=false was overridden")
	}
	a, b, err := cfg.Lines(WheelLeft)
	if err != nil || a != 13 || b != 12 {
		t.Errorf("Swapped left lines: got %d,%d err=%v", a, b, err)
	}
}

func TestValidateErrors(t *testing.T) {
	testCases := []struct {
		name string
		json string
		err  error
	}{
		{"address", `{"address": 200}`, ErrBadAddress},
		{"sampler", `{"sampler": "poll"}`, ErrBadSampler},
		{"missing", `{"encoders": {"right": {"a_pin": "gpio6", "b_pin": "gpio7"}}}`, ErrMissingEncoder},
		{"pin", `{"sda_pin": "pa4"}`, ErrBadPin},
		{"conflict", `{"sda_pin": "gpio6"}`, ErrPinConflict},
		{"adjacent", `{"sampler": "pio", "encoders": {
			"right": {"a_pin": "gpio6", "b_pin": "gpio8"},
			"left": {"a_pin": "gpio10", "b_pin": "gpio11"}}}`, ErrNotAdjacent},
	}

	for _, tc := range testCases {
		_, err := LoadConfig([]byte(tc.json))
		if !errors.Is(err, tc.err) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestParsePin(t *testing.T) {
	testCases := []struct {
		name string
		pin  uint8
		ok   bool
	}{
		{"gpio0", 0, true},
		{"GPIO29", 29, true},
		{"gp15", 15, true},
		{" 7 ", 7, true},
		{"gpio30", 0, false},
		{"adc0", 0, false},
		{"", 0, false},
	}

	for _, tc := range testCases {
		pin, err := ParsePin(tc.name)
		if (err == nil) != tc.ok || pin != tc.pin {
			t.Errorf("ParsePin(%q) = %d, %v", tc.name, pin, err)
		}
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	data := []byte("address: 0x30\nsampler: pio\ntelemetry_interval_ms: 250\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Address != 0x30 || cfg.Sampler != SamplerPIO || cfg.TelemetryIntervalMs != 250 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if _, ok := cfg.Encoders[WheelRight]; !ok {
		t.Error("Encoders should default when absent")
	}
}
