//go:build rp2040 || rp2350

package main

import (
	"machine"

	"quadenc/core"
)

var debugUART *machine.UART

// initDebug routes core debug output to UART0 on GP0 (TX) and GP1 (RX),
// 115200 baud
func initDebug(enabled bool) {
	if !enabled {
		return
	}
	debugUART = machine.UART0
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.DebugPrintln("=== quadenc debug UART ===")
}
