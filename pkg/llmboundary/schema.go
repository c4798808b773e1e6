package llmboundary

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

// schemaCache memoizes one generated schema string per output type, so
// a hot Act loop does not re-reflect ActDecision's struct tags on every
// iteration.
var (
	schemaCacheMu sync.RWMutex
	schemaCache   = map[reflect.Type]string{}
)

// schemaFor renders a Go type's JSON schema as a string suitable for
// embedding in a prompt, using the same invopop/jsonschema reflection
// hector's pkg/tool/functiontool/schema.go uses for its tool
// parameters (RequiredFromJSONSchemaTags, inlined definitions, no
// $schema/$id noise).
func schemaFor(out any) (string, error) {
	t := reflect.TypeOf(out)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schemaCacheMu.RLock()
	cached, ok := schemaCache[t]
	schemaCacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(t)

	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("llmboundary: marshaling schema for %s: %w", t.Name(), err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("llmboundary: round-tripping schema for %s: %w", t.Name(), err)
	}
	delete(m, "$schema")
	delete(m, "$id")

	pretty, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("llmboundary: pretty-printing schema for %s: %w", t.Name(), err)
	}

	out2 := string(pretty)
	schemaCacheMu.Lock()
	schemaCache[t] = out2
	schemaCacheMu.Unlock()
	return out2, nil
}
