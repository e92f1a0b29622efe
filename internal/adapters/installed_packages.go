package adapters

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

var (
	dumpsysVersionCode = regexp.MustCompile(`versionCode=(\d+)`)
	dumpsysMinSDK      = regexp.MustCompile(`minSdk=(\d+)`)
	dumpsysTargetSDK   = regexp.MustCompile(`targetSdk=(\d+)`)
	dumpsysGranted     = regexp.MustCompile(`^([\w.]+): granted=(true|false)`)
	dumpsysRequested   = regexp.MustCompile(`^([A-Za-z][\w.]*)(?::.*)?$`)
)

// InstalledPackagesAdapter reads installed package state from
// `dumpsys package <name>`.
type InstalledPackagesAdapter struct {
	Runner ports.CommandRunner
}

func NewInstalledPackagesAdapter(runner ports.CommandRunner) InstalledPackagesAdapter {
	return InstalledPackagesAdapter{Runner: runner}
}

func (a InstalledPackagesAdapter) InstalledPackage(ctx context.Context, name string) (*types.PackageInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package name is empty")
	}
	out, _, err := a.Runner.Run(ctx, "dumpsys", "package", name)
	if err != nil {
		return nil, err
	}
	return ParseDumpsysPackage(name, out), nil
}

// ParseDumpsysPackage extracts the "Packages:" entry for name. It returns nil
// when the package is not installed.
func ParseDumpsysPackage(name string, output string) *types.PackageInfo {
	header := "Package [" + name + "]"
	if !strings.Contains(output, header) {
		return nil
	}
	info := &types.PackageInfo{PackageName: name}
	granted := map[string]bool{}
	var requested []string

	section := ""
	inPackage := false
	blocks := 0
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "Package [") {
			inPackage = strings.HasPrefix(line, header)
			if inPackage {
				blocks++
			}
			section = ""
			continue
		}
		// A second block for the same name is the hidden system copy.
		if blocks > 1 {
			break
		}
		if !inPackage || line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "versionCode="):
			info.VersionCode = parseInt64(dumpsysVersionCode, line)
			info.MinSDK = int32(parseInt64(dumpsysMinSDK, line))
			info.TargetSDK = int32(parseInt64(dumpsysTargetSDK, line))
			continue
		case strings.HasPrefix(line, "versionName="):
			info.VersionName = strings.TrimPrefix(line, "versionName=")
			continue
		case line == "requested permissions:":
			section = "requested"
			continue
		case line == "install permissions:" || strings.HasPrefix(line, "runtime permissions:"):
			section = "granted"
			continue
		case strings.HasSuffix(line, ":") && !strings.Contains(line, " "):
			section = ""
			continue
		}
		switch section {
		case "requested":
			if match := dumpsysRequested.FindStringSubmatch(line); match != nil {
				requested = append(requested, match[1])
				continue
			}
			section = ""
		case "granted":
			if match := dumpsysGranted.FindStringSubmatch(line); match != nil {
				granted[match[1]] = match[2] == "true"
			}
		}
	}
	for _, perm := range requested {
		info.RequestedPermissions = append(info.RequestedPermissions, types.RequestedPermission{
			Name:    perm,
			Granted: granted[perm],
		})
	}
	return info
}

func parseInt64(pattern *regexp.Regexp, line string) int64 {
	match := pattern.FindStringSubmatch(line)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

var _ ports.InstalledPackagesPort = InstalledPackagesAdapter{}
