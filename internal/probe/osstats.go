package probe

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
)

// readOSStats fills model.OSStats from /proc/meminfo, /proc/loadavg and
// /proc/uptime, tolerating their absence on non-Linux hosts by returning
// zero values.
func readOSStats() (model.OSStats, error) {
	stats := model.OSStats{
		Platform: runtime.GOOS,
		CPUs:     runtime.NumCPU(),
	}

	var firstErr error

	if err := parseMeminfo(&stats); err != nil && firstErr == nil {
		firstErr = err
	}
	if load, err := parseLoadAvg(); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		stats.LoadAvg = load
	}
	if uptime, err := parseUptime(); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else {
		stats.Uptime = uptime
	}

	return stats, firstErr
}

func parseMeminfo(stats *model.OSStats) error {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return fmt.Errorf("open meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		valStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[1]), " kB"))
		val, _ := strconv.ParseUint(valStr, 10, 64)
		valBytes := val * 1024

		switch key {
		case "MemTotal":
			stats.TotalMem = valBytes
		case "MemFree":
			stats.FreeMem = valBytes
		}
	}
	return scanner.Err()
}

func parseLoadAvg() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, fmt.Errorf("open loadavg: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty loadavg")
	}
	return strconv.ParseFloat(fields[0], 64)
}

func parseUptime() (float64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, fmt.Errorf("open uptime: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty uptime")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// readSelfCPU reads this process's own CPU ticks from /proc/self/stat and
// converts the delta since the previous call into userMs/systemMs/percent.
func readSelfCPU(p *DefaultProbe) (model.CPUStats, error) {
	content, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return model.CPUStats{}, fmt.Errorf("open self/stat: %w", err)
	}

	commEnd := strings.LastIndex(string(content), ")")
	if commEnd < 0 || commEnd+2 >= len(content) {
		return model.CPUStats{}, fmt.Errorf("malformed self/stat")
	}
	fields := strings.Fields(string(content[commEnd+2:]))
	if len(fields) <= 12 {
		return model.CPUStats{}, fmt.Errorf("short self/stat")
	}
	utime, _ := strconv.ParseUint(fields[11], 10, 64)
	stime, _ := strconv.ParseUint(fields[12], 10, 64)

	userMs := int64(utime) * 10
	sysMs := int64(stime) * 10

	now := time.Now()
	p.mu.Lock()
	var percent float64
	if !p.lastCPUTime.IsZero() {
		elapsed := now.Sub(p.lastCPUTime).Seconds()
		deltaMs := float64((userMs - p.lastUserMs) + (sysMs - p.lastSysMs))
		if elapsed > 0 {
			percent = (deltaMs / 1000.0) / elapsed * 100.0
		}
	}
	p.lastCPUTime = now
	p.lastUserMs = userMs
	p.lastSysMs = sysMs
	p.mu.Unlock()

	return model.CPUStats{UserMs: float64(userMs), SystemMs: float64(sysMs), Percent: percent}, nil
}
