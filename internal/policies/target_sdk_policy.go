package policies

// MinSessionSDK is the first OS version whose session installer honours the
// "user action not required" flag.
const MinSessionSDK = 31

// unattendedTargetFloor maps an OS version to the lowest archive target SDK
// the OS still installs without a prompt. Versions above the last entry use
// its value.
var unattendedTargetFloor = []struct {
	sdk       int
	minTarget int32
}{
	{sdk: 31, minTarget: 29},
	{sdk: 33, minTarget: 30},
	{sdk: 34, minTarget: 31},
	{sdk: 35, minTarget: 33},
}

// SessionUnattendedSupported reports whether a session install of an archive
// targeting targetSDK can complete without user action on an OS at sdk.
func SessionUnattendedSupported(sdk int, targetSDK int32) bool {
	if sdk < MinSessionSDK {
		return false
	}
	floor := int32(-1)
	for _, entry := range unattendedTargetFloor {
		if sdk >= entry.sdk {
			floor = entry.minTarget
		}
	}
	return floor >= 0 && targetSDK >= floor
}
