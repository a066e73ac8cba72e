// Package buildinfo reports the version the binary was built from.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
)

// ServiceName is the name reported by the server's /version endpoint.
const ServiceName = "minutes"

// Set at build time via ldflags:
// -X github.com/otherjamesbrown/minutes/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/minutes/pkg/buildinfo.Commit=4f1c2aa
// -X github.com/otherjamesbrown/minutes/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for a service.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
}

// Get returns build info for the named service. When the binary was built
// without ldflags, the VCS revision recorded by the Go toolchain is used.
func Get(serviceName string) Info {
	info := Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
	if info.Commit == "unknown" || info.BuildTime == "unknown" {
		fillFromVCS(&info, readBuildInfo)
	}
	return info
}

var readBuildInfo = debug.ReadBuildInfo

func fillFromVCS(info *Info, read func() (*debug.BuildInfo, bool)) {
	bi, ok := read()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns a one-liner like "v0.3.0 (4f1c2aa, 2026-10-01T09:00:00Z)".
func String() string {
	info := Get(ServiceName)
	return info.Version + " (" + info.Commit + ", " + info.BuildTime + ")"
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Get(serviceName))
	}
}
