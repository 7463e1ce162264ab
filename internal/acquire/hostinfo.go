package acquire

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/pixelproof/pixelproof/internal/model"
)

// CollectHostContext describes the machine performing the acquisition for
// the custody record. Collection is best effort: when platform details are
// unavailable the context still carries the hostname and OS family, and a
// machine where even those fail yields a context with empty fields rather
// than an error. Host identity annotates the custody record, it never
// gates an acquisition.
func CollectHostContext() *model.HostContext {
	ctx := &model.HostContext{OS: runtime.GOOS}
	if name, err := os.Hostname(); err == nil {
		ctx.Hostname = name
	}

	info, err := host.Info()
	if err != nil {
		return ctx
	}

	if info.Hostname != "" {
		ctx.Hostname = info.Hostname
	}
	if info.OS != "" {
		ctx.OS = info.OS
	}
	ctx.Platform = info.Platform
	ctx.PlatformVersion = info.PlatformVersion
	ctx.KernelVersion = info.KernelVersion
	ctx.KernelArch = info.KernelArch
	return ctx
}
