// Package annotate exposes get/set/list operations over the metadata
// record of one directory. It is the layer a command line (or any
// other boundary) talks to; the on-disk format lives in metafile.
package annotate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookgo/clock"
	"github.com/jbethune/annovate/metafile"
)

const (
	// RecordFileName is the default name of the record file inside a
	// directory. The name is reserved: objects cannot be tracked
	// under it.
	RecordFileName = ".annovate"

	// DescriptionKey is the property List reports on.
	DescriptionKey = "description"
)

// Annotations wraps one loaded record store.
type Annotations struct {
	// Clock provides timestamps for Set. Defaults to the wall clock;
	// tests inject clock.NewMock().
	Clock clock.Clock

	store *metafile.Store
}

// Open loads (or, if absent, starts empty) the record at recordPath.
func Open(recordPath string) (*Annotations, error) {
	s := &metafile.Store{Path: recordPath}
	if err := metafile.OpenStore(s); err != nil {
		return nil, err
	}
	return &Annotations{
		Clock: clock.New(),
		store: s,
	}, nil
}

// RecordPath resolves the record location for a file or directory
// path: a directory keeps its record inside itself, anything else
// (including paths that don't exist yet) uses the parent directory.
// Also returns the object name the path is tracked under, which is
// its base name. Empty recordFileName means RecordFileName.
func RecordPath(objPath, recordFileName string) (string, string, error) {
	if recordFileName == "" {
		recordFileName = RecordFileName
	}
	abs, err := filepath.Abs(objPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to get absolute path for %s: %w", objPath, err)
	}
	name := filepath.Base(abs)
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return filepath.Join(abs, recordFileName), name, nil
	}
	return filepath.Join(filepath.Dir(abs), recordFileName), name, nil
}

// Get returns the current value for (object, key), or def if either
// the object or the key is unknown. A miss is not an error.
func (a *Annotations) Get(object, key, def string) string {
	dv, ok := a.store.Get(object, key)
	if !ok {
		return def
	}
	return dv.Value
}

// Value returns the current value for (object, key) together with the
// time it was assigned.
func (a *Annotations) Value(object, key string) (metafile.DatedValue, bool) {
	return a.store.Get(object, key)
}

func validateBatch(object, recordFileName string, props map[string]string) error {
	if object == "" {
		return fmt.Errorf("object name is empty")
	}
	if strings.ContainsAny(object, "@\n") {
		return fmt.Errorf("object name cannot contain '@' or newlines: '%s'", object)
	}
	if object == recordFileName {
		return fmt.Errorf("'%s' is reserved for the record file", object)
	}
	for k, v := range props {
		if strings.ContainsAny(k, "=\n") {
			return fmt.Errorf("property key cannot contain '=' or newlines: '%s'", k)
		}
		if strings.Contains(v, "\n") {
			return fmt.Errorf("property value cannot contain newlines: '%s'", v)
		}
	}
	return nil
}

// Set assigns all given properties to object in one batch, stamped
// once with the current time, and writes the batch to the record.
func (a *Annotations) Set(object string, props map[string]string) error {
	if err := validateBatch(object, filepath.Base(a.store.Path), props); err != nil {
		return err
	}
	a.store.Add(&metafile.Batch{
		Object:     object,
		Time:       a.Clock.Now(),
		Properties: props,
	})
	return a.store.Write()
}

// Listing pairs an object name with its description (or a default).
type Listing struct {
	Object      string
	Description string
}

// List returns all tracked objects in the order they were first
// introduced, each with its description property or def when the
// object has none.
func (a *Annotations) List(def string) []Listing {
	objects := a.store.Objects()
	res := make([]Listing, 0, len(objects))
	for _, object := range objects {
		res = append(res, Listing{
			Object:      object,
			Description: a.Get(object, DescriptionKey, def),
		})
	}
	return res
}
