// Package license gates licensed features on a feature list read from a
// license file.
package license

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const FeatureRemoteDevelopment = "remote_development"

type Checker interface {
	FeatureAvailable(feature string) bool
}

type licenseFile struct {
	Plan     string   `yaml:"plan"`
	Features []string `yaml:"features"`
}

// FileChecker reads its feature list from a YAML license file and can keep
// it fresh while the file changes underneath.
type FileChecker struct {
	path string

	mux      sync.RWMutex
	features map[string]struct{}
}

var _ Checker = &FileChecker{}

// FromFile loads path. A missing file is not an error; it is a license with
// no features.
func FromFile(path string) (*FileChecker, error) {
	c := &FileChecker{path: path, features: map[string]struct{}{}}
	if err := c.reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return c, nil
}

func (c *FileChecker) FeatureAvailable(feature string) bool {
	c.mux.RLock()
	defer c.mux.RUnlock()
	_, ok := c.features[feature]
	return ok
}

func (c *FileChecker) reload() error {
	content, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	var f licenseFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return err
	}

	features := map[string]struct{}{}
	for _, feat := range f.Features {
		features[feat] = struct{}{}
	}

	c.mux.Lock()
	defer c.mux.Unlock()
	c.features = features
	return nil
}

// Watch reloads the license whenever its file is rewritten, until ctx ends.
// A file that fails to reload keeps the previous feature set.
func (c *FileChecker) Watch(ctx context.Context, logger *log.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// watch the directory: editors and secret mounts replace the file,
	// which drops a watch set on the file itself.
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.Events:
				if filepath.Clean(ev.Name) != filepath.Clean(c.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := c.reload(); err != nil {
					logger.Printf("WARN: failed to reload license %s: %s", c.path, err)
					continue
				}
				logger.Printf("license reloaded: %s", c.path)
			case err := <-w.Errors:
				logger.Printf("WARN: license watch: %s", err)
			}
		}
	}()

	return nil
}
