package features

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the run-dispatch scenarios. Without SERVER_URL the suite
// starts an in-process server in local mode; set it to exercise a deployed
// service instead.
func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("feature suite skipped in short mode")
	}
	if serverURL := os.Getenv("SERVER_URL"); serverURL != "" {
		t.Logf("Running the feature suite against %s", serverURL)
	}

	featuresPath := "."
	if workDir, err := os.Getwd(); err == nil && filepath.Base(workDir) != "features" {
		featuresPath = filepath.Join(workDir, "tests", "features")
	}

	tags := os.Getenv("GODOG_TAGS")
	suite := godog.TestSuite{
		Name:                 "wes-dispatch",
		TestSuiteInitializer: InitializeTestSuite,
		ScenarioInitializer:  InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{featuresPath},
			Tags:     tags,
			TestingT: t,
			Strict:   true,
		},
	}

	if status := suite.Run(); status != 0 {
		t.Fatalf("feature suite failed with status %d", status)
	}
}
