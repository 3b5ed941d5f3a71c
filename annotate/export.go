package annotate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/pretty"
)

type exportedValue struct {
	Value string `json:"value"`
	Time  string `json:"time"`
}

// ExportJSON renders the whole record as indented JSON, one entry per
// (object, key) with the value and the time it was assigned. Useful
// for piping metadata into other tools.
func (a *Annotations) ExportJSON() ([]byte, error) {
	objects := map[string]map[string]exportedValue{}
	for _, object := range a.store.Objects() {
		props := map[string]exportedValue{}
		for k, dv := range a.store.Properties(object) {
			props[k] = exportedValue{
				Value: dv.Value,
				Time:  dv.Time.UTC().Format(time.RFC3339Nano),
			}
		}
		objects[object] = props
	}
	d, err := json.Marshal(objects)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record: %w", err)
	}
	return pretty.Pretty(d), nil
}
