package main

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// hostAttrs describes the machine for the startup log line. Capture needs
// Windows 10 1903 (build 18362) or later.
func hostAttrs() []any {
	attrs := []any{"arch", runtime.GOARCH}
	info, err := host.Info()
	if err != nil {
		return append(attrs, "os", runtime.GOOS)
	}
	return append(attrs,
		"hostname", info.Hostname,
		"os", info.OS,
		"platform", info.Platform,
		"platformVersion", info.PlatformVersion,
		"kernelVersion", info.KernelVersion,
	)
}
