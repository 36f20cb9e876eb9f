package metrics

import (
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// HostInfo describes the process host, exported as a constant gauge
type HostInfo struct {
	Hostname  string
	OS        string
	Arch      string
	GoVersion string
	Container string
}

// CaptureHostInfo gathers host details for the info gauge
func CaptureHostInfo() HostInfo {
	info := HostInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
		Container: detectContainer(),
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}
	return info
}

// detectContainer reports the container runtime, or "none"
func detectContainer() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "docker"
	}
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return "kubernetes"
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		switch {
		case strings.Contains(content, "kubepods"):
			return "kubernetes"
		case strings.Contains(content, "docker"):
			return "docker"
		case strings.Contains(content, "containerd"):
			return "containerd"
		}
	}
	return "none"
}

func newHostInfoGauge(namespace string, info HostInfo) prometheus.Collector {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "host_info",
		Help:      "Static information about the host running the service.",
	}, []string{"hostname", "os", "arch", "go_version", "container"})
	gauge.WithLabelValues(info.Hostname, info.OS, info.Arch, info.GoVersion, info.Container).Set(1)
	return gauge
}
