package store

import (
	"os"
	"testing"
)

const skipIntegrationTests = "LIBRARY_SKIP_INTEGRATION_TESTS"

// skipIntegration skips container-backed suites in -short mode or when the env var is set.
func skipIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
}
