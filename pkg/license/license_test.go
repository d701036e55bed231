package license_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spacefab/spacefab/pkg/license"
	"github.com/spacefab/spacefab/pkg/utils/try"
)

func TestFileChecker(t *testing.T) {
	t.Run("features in the license are available", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "license.yaml")
		if err := os.WriteFile(path, []byte(`
plan: ultimate
features:
  - remote_development
  - epics
`), 0o644); err != nil {
			t.Fatal(err)
		}

		checker := try.To(license.FromFile(path)).OrFatal(t)
		if !checker.FeatureAvailable(license.FeatureRemoteDevelopment) {
			t.Error("remote_development should be available")
		}
		if checker.FeatureAvailable("sast") {
			t.Error("sast should not be available")
		}
	})

	t.Run("a missing license file means no features", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "no-such-license.yaml")
		checker := try.To(license.FromFile(path)).OrFatal(t)
		if checker.FeatureAvailable(license.FeatureRemoteDevelopment) {
			t.Error("no feature should be available")
		}
	})

	t.Run("a broken license file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "license.yaml")
		if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := license.FromFile(path); err == nil {
			t.Error("no error")
		}
	})
}
