package server

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// healthHandler collects and returns system-level metrics together with the
// number of live screens. Metric failures degrade to "n/a".
func (s *Server) healthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	system := map[string]string{
		"cpu_usage":  "n/a",
		"ram_usage":  "n/a",
		"disk_usage": "n/a",
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		system["ram_usage"] = fmt.Sprintf("%.2f%%", v.UsedPercent)
	}
	if p, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(p) > 0 {
		system["cpu_usage"] = fmt.Sprintf("%.2f%%", p[0])
	}
	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		system["disk_usage"] = fmt.Sprintf("%.2f%%", d.UsedPercent)
	}

	rt := map[string]interface{}{
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"start_time": s.startTime.Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	}
	if hInfo, err := host.InfoWithContext(ctx); err == nil {
		rt["os"] = hInfo.OS
		rt["platform"] = hInfo.Platform
		rt["arch"] = hInfo.KernelArch
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "online",
		"live_screens": s.screens.LiveScreens(),
		"runtime":      rt,
		"system":       system,
	})
}
