package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SetupCLI(t *testing.T) {
	rootCmd := SetupCLI("x.y.z", "1234567890abcdef")

	assert.Equal(t, "banking-platform", rootCmd.Use)
	assert.Equal(t, "x.y.z", rootCmd.Version)

	commandNames := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		commandNames = append(commandNames, c.Name())
	}
	assert.Contains(t, commandNames, "serve")
	assert.Contains(t, commandNames, "db")
}

func Test_SetupCLI_persistentFlagDefaults(t *testing.T) {
	rootCmd := SetupCLI("x.y.z", "")

	testCases := []struct {
		flagName         string
		wantDefaultValue string
	}{
		{flagName: "log-level", wantDefaultValue: "TRACE"},
		{flagName: "environment", wantDefaultValue: "development"},
		{flagName: "crash-tracker-type", wantDefaultValue: "DRY_RUN"},
	}

	for _, tc := range testCases {
		t.Run(tc.flagName, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tc.flagName)
			require.NotNil(t, flag)
			assert.Equal(t, tc.wantDefaultValue, flag.DefValue)
		})
	}
}

func Test_dbCommand_registersBothMigrationSets(t *testing.T) {
	cmd := dbCommand()

	migrationCommands := map[string][]string{}
	for _, sub := range cmd.Commands() {
		for _, leaf := range sub.Commands() {
			migrationCommands[sub.Name()] = append(migrationCommands[sub.Name()], leaf.Name())
		}
	}

	require.Contains(t, migrationCommands, "migrate")
	require.Contains(t, migrationCommands, "auth-migrate")
	assert.ElementsMatch(t, []string{"up", "down"}, migrationCommands["migrate"])
	assert.ElementsMatch(t, []string{"up", "down"}, migrationCommands["auth-migrate"])
}
