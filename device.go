package seglog

import (
	"os"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/lixenwraith/seglog/formatter"
)

// DeviceInfo describes the host, written at the top of every new log file
type DeviceInfo struct {
	AppVersionName string
	AppVersionCode string
	OSVersionName  string
	OSVersionCode  string
	OSDisplayName  string
	Brand          string
	Product        string
	Model          string
	Manufacturer   string
}

// Fields lists the header lines in file order
func (d DeviceInfo) Fields() []formatter.Field {
	return []formatter.Field{
		{Label: "App Version Name", Value: d.AppVersionName},
		{Label: "App Version Code", Value: d.AppVersionCode},
		{Label: "OS Version Name", Value: d.OSVersionName},
		{Label: "OS Version Code", Value: d.OSVersionCode},
		{Label: "OS Display Name", Value: d.OSDisplayName},
		{Label: "Brand", Value: d.Brand},
		{Label: "Product", Value: d.Product},
		{Label: "Model", Value: d.Model},
		{Label: "Manufacturer", Value: d.Manufacturer},
	}
}

// Header renders the header block
func (d DeviceInfo) Header() string {
	return formatter.Header(d.Fields())
}

var (
	hostInfo     DeviceInfo
	hostInfoOnce sync.Once
)

// HostDeviceInfo describes the running binary and host from build and runtime metadata
func HostDeviceInfo() DeviceInfo {
	hostInfoOnce.Do(func() {
		hostInfo = DeviceInfo{
			AppVersionName: "unknown",
			AppVersionCode: "unknown",
			OSVersionName:  runtime.GOOS,
			OSVersionCode:  runtime.GOARCH,
			OSDisplayName:  "unknown",
			Brand:          runtime.Compiler,
			Product:        "unknown",
			Model:          runtime.Version(),
			Manufacturer:   "unknown",
		}
		if host, err := os.Hostname(); err == nil {
			hostInfo.OSDisplayName = host
		}
		if bi, ok := debug.ReadBuildInfo(); ok {
			hostInfo.Product = bi.Main.Path
			if bi.Main.Version != "" {
				hostInfo.AppVersionName = bi.Main.Version
			}
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					hostInfo.AppVersionCode = s.Value
				case "vcs":
					hostInfo.Manufacturer = s.Value
				}
			}
		}
	})
	return hostInfo
}
