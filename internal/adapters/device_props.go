package adapters

import (
	"context"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"apk-installer/internal/ports"
	"apk-installer/internal/types"
)

// DevicePropsAdapter reads build properties through getprop. SDKOverride
// wins when positive.
type DevicePropsAdapter struct {
	Runner      ports.CommandRunner
	SDKOverride int
}

func NewDevicePropsAdapter(runner ports.CommandRunner, sdkOverride int) DevicePropsAdapter {
	return DevicePropsAdapter{Runner: runner, SDKOverride: sdkOverride}
}

func (a DevicePropsAdapter) DeviceInfo(ctx context.Context) (types.DeviceInfo, error) {
	info := types.DeviceInfo{SDK: a.SDKOverride}
	brand, err := a.prop(ctx, "ro.product.brand")
	if err != nil {
		return info, err
	}
	model, err := a.prop(ctx, "ro.product.model")
	if err != nil {
		return info, err
	}
	info.Brand = brand
	info.Model = model
	if info.SDK > 0 {
		return info, nil
	}
	sdk, err := a.prop(ctx, "ro.build.version.sdk")
	if err != nil {
		return info, err
	}
	value, err := strconv.Atoi(sdk)
	if err != nil {
		return info, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("unreadable sdk version: " + sdk).
			WithCause(err)
	}
	info.SDK = value
	return info, nil
}

func (a DevicePropsAdapter) prop(ctx context.Context, key string) (string, error) {
	out, _, err := a.Runner.Run(ctx, "getprop", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

var _ ports.DevicePort = DevicePropsAdapter{}
