package installers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeReturnCodes(t *testing.T) {
	assert.Equal(t, "Error -25: the new package has an older version code than the currently installed package", installErrorMessage(-25))
	assert.Equal(t, "Error -4: the system failed to delete the package because a profile or device owner has marked the package as uninstallable", deleteErrorMessage(-4))
	assert.Equal(t, "unknown error code -999", installErrorMessage(-999))
}

func TestParsePMFailure(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		table    map[int]returnCode
		wantCode int
		wantName string
		wantOK   bool
	}{
		{
			name:     "known install failure",
			output:   "Performing Streamed Install\nFailure [INSTALL_FAILED_VERSION_DOWNGRADE]\n",
			table:    installReturnCodes,
			wantCode: -25,
			wantName: "INSTALL_FAILED_VERSION_DOWNGRADE",
			wantOK:   true,
		},
		{
			name:     "failure with detail",
			output:   "Failure [INSTALL_PARSE_FAILED_NO_CERTIFICATES: Failed collecting certificates]",
			table:    installReturnCodes,
			wantCode: -103,
			wantName: "INSTALL_PARSE_FAILED_NO_CERTIFICATES",
			wantOK:   true,
		},
		{
			name:     "delete failure",
			output:   "Failure [DELETE_FAILED_DEVICE_POLICY_MANAGER]",
			table:    deleteReturnCodes,
			wantCode: -2,
			wantName: "DELETE_FAILED_DEVICE_POLICY_MANAGER",
			wantOK:   true,
		},
		{
			name:     "unknown failure name",
			output:   "Failure [INSTALL_FAILED_SESSION_INVALID]",
			table:    installReturnCodes,
			wantName: "INSTALL_FAILED_SESSION_INVALID",
			wantOK:   true,
		},
		{
			name:   "no failure",
			output: "Success",
			table:  installReturnCodes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, name, ok := parsePMFailure(tt.output, tt.table)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestPMSucceeded(t *testing.T) {
	assert.True(t, pmSucceeded("Performing Streamed Install\nSuccess\n"))
	assert.False(t, pmSucceeded("Failure [INSTALL_FAILED_INVALID_APK]"))
	assert.False(t, pmSucceeded("No Success here"))
}
