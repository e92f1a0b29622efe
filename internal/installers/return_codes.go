package installers

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	installSucceeded = 1
	deleteSucceeded  = 1

	// installReplaceExisting is the package manager flag for updates.
	installReplaceExisting = 2
)

type returnCode struct {
	name        string
	description string
}

var installReturnCodes = map[int]returnCode{
	-1:   {"INSTALL_FAILED_ALREADY_EXISTS", "the package is already installed"},
	-2:   {"INSTALL_FAILED_INVALID_APK", "the package archive file is invalid"},
	-3:   {"INSTALL_FAILED_INVALID_URI", "the URI passed in is invalid"},
	-4:   {"INSTALL_FAILED_INSUFFICIENT_STORAGE", "the package manager service found that the device didn't have enough storage space to install the app"},
	-5:   {"INSTALL_FAILED_DUPLICATE_PACKAGE", "a package is already installed with the same name"},
	-6:   {"INSTALL_FAILED_NO_SHARED_USER", "the requested shared user does not exist"},
	-7:   {"INSTALL_FAILED_UPDATE_INCOMPATIBLE", "a previously installed package of the same name has a different signature than the new package (and the old package's data was not removed)"},
	-8:   {"INSTALL_FAILED_SHARED_USER_INCOMPATIBLE", "the new package is requested a shared user which is already installed on the device and does not have matching signature"},
	-9:   {"INSTALL_FAILED_MISSING_SHARED_LIBRARY", "the new package uses a shared library that is not available"},
	-10:  {"INSTALL_FAILED_REPLACE_COULDNT_DELETE", "the existing package could not be deleted"},
	-11:  {"INSTALL_FAILED_DEXOPT", "the new package failed while optimizing and validating its dex files, either because there was not enough storage or the validation failed"},
	-12:  {"INSTALL_FAILED_OLDER_SDK", "the new package failed because the current SDK version is older than that required by the package"},
	-13:  {"INSTALL_FAILED_CONFLICTING_PROVIDER", "the new package failed because it contains a content provider with the same authority as a provider already installed in the system"},
	-14:  {"INSTALL_FAILED_NEWER_SDK", "the new package failed because the current SDK version is newer than that required by the package"},
	-15:  {"INSTALL_FAILED_TEST_ONLY", "the new package failed because it has specified that it is a test-only package and the caller has not supplied the test flag"},
	-16:  {"INSTALL_FAILED_CPU_ABI_INCOMPATIBLE", "the package being installed contains native code, but none that is compatible with the device's CPU_ABI"},
	-17:  {"INSTALL_FAILED_MISSING_FEATURE", "the new package uses a feature that is not available"},
	-18:  {"INSTALL_FAILED_CONTAINER_ERROR", "a secure container mount point couldn't be accessed on external media"},
	-19:  {"INSTALL_FAILED_INVALID_INSTALL_LOCATION", "the new package couldn't be installed in the specified install location"},
	-20:  {"INSTALL_FAILED_MEDIA_UNAVAILABLE", "the new package couldn't be installed in the specified install location because the media is not available"},
	-21:  {"INSTALL_FAILED_VERIFICATION_TIMEOUT", "the new package couldn't be installed because the verification timed out"},
	-22:  {"INSTALL_FAILED_VERIFICATION_FAILURE", "the new package couldn't be installed because the verification did not succeed"},
	-23:  {"INSTALL_FAILED_PACKAGE_CHANGED", "the package changed from what the calling program expected"},
	-24:  {"INSTALL_FAILED_UID_CHANGED", "the new package is assigned a different UID than it previously held"},
	-25:  {"INSTALL_FAILED_VERSION_DOWNGRADE", "the new package has an older version code than the currently installed package"},
	-100: {"INSTALL_PARSE_FAILED_NOT_APK", "the parser was given a path that is not a file, or does not end with the expected '.apk' extension"},
	-101: {"INSTALL_PARSE_FAILED_BAD_MANIFEST", "the parser was unable to retrieve the AndroidManifest.xml file"},
	-102: {"INSTALL_PARSE_FAILED_UNEXPECTED_EXCEPTION", "the parser encountered an unexpected exception"},
	-103: {"INSTALL_PARSE_FAILED_NO_CERTIFICATES", "the parser did not find any certificates in the .apk"},
	-104: {"INSTALL_PARSE_FAILED_INCONSISTENT_CERTIFICATES", "the parser found inconsistent certificates on the files in the .apk"},
	-105: {"INSTALL_PARSE_FAILED_CERTIFICATE_ENCODING", "the parser encountered a CertificateEncodingException in one of the files in the .apk"},
	-106: {"INSTALL_PARSE_FAILED_BAD_PACKAGE_NAME", "the parser encountered a bad or missing package name in the manifest"},
	-107: {"INSTALL_PARSE_FAILED_BAD_SHARED_USER_ID", "the parser encountered a bad shared user id name in the manifest"},
	-108: {"INSTALL_PARSE_FAILED_MANIFEST_MALFORMED", "the parser encountered some structural problem in the manifest"},
	-109: {"INSTALL_PARSE_FAILED_MANIFEST_EMPTY", "the parser did not find any actionable tags (instrumentation or application) in the manifest"},
	-110: {"INSTALL_FAILED_INTERNAL_ERROR", "the system failed to install the package because of system issues"},
	-111: {"INSTALL_FAILED_USER_RESTRICTED", "the system failed to install the package because the user is restricted from installing apps"},
	-112: {"INSTALL_FAILED_DUPLICATE_PERMISSION", "the system failed to install the package because it is attempting to define a permission that is already defined by some existing package"},
	-113: {"INSTALL_FAILED_NO_MATCHING_ABIS", "the system failed to install the package because its packaged native code did not match any of the ABIs supported by the system"},
}

var deleteReturnCodes = map[int]returnCode{
	-1: {"DELETE_FAILED_INTERNAL_ERROR", "the system failed to delete the package for an unspecified reason"},
	-2: {"DELETE_FAILED_DEVICE_POLICY_MANAGER", "the system failed to delete the package because it is the active DevicePolicy manager"},
	-3: {"DELETE_FAILED_USER_RESTRICTED", "the system failed to delete the package since the user is restricted"},
	-4: {"DELETE_FAILED_OWNER_BLOCKED", "the system failed to delete the package because a profile or device owner has marked the package as uninstallable"},
}

var pmFailure = regexp.MustCompile(`Failure \[([A-Z0-9_]+)(?:[:\s][^\]]*)?\]`)

func installErrorMessage(code int) string {
	return describe(installReturnCodes, code)
}

func deleteErrorMessage(code int) string {
	return describe(deleteReturnCodes, code)
}

func describe(table map[int]returnCode, code int) string {
	entry, ok := table[code]
	if !ok {
		return fmt.Sprintf("unknown error code %d", code)
	}
	return fmt.Sprintf("Error %d: %s", code, entry.description)
}

// parsePMFailure extracts the failure name printed by pm, such as
// "Failure [INSTALL_FAILED_VERSION_DOWNGRADE]", and maps it to its code.
func parsePMFailure(output string, table map[int]returnCode) (int, string, bool) {
	match := pmFailure.FindStringSubmatch(output)
	if match == nil {
		return 0, "", false
	}
	name := match[1]
	for code, entry := range table {
		if entry.name == name {
			return code, name, true
		}
	}
	return 0, name, true
}

func pmSucceeded(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "Success" {
			return true
		}
	}
	return false
}
