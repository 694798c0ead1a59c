package manifest

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rudi-cli/rudi/internal/rudierr"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[Kind]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[Kind]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		files := map[Kind]string{
			KindStack:   "schemas/stack.schema.json",
			KindPrompt:  "schemas/prompt.schema.json",
			KindRuntime: "schemas/runtime.schema.json",
		}
		compiled = make(map[Kind]*jsonschema.Schema, len(files))
		for kind, path := range files {
			data, err := schemaFS.ReadFile(path)
			if err != nil {
				compileErr = fmt.Errorf("reading embedded schema %s: %w", path, err)
				return
			}
			var doc any
			if err := json.Unmarshal(data, &doc); err != nil {
				compileErr = fmt.Errorf("parsing embedded schema %s: %w", path, err)
				return
			}
			url := "mem://" + path
			if err := compiler.AddResource(url, doc); err != nil {
				compileErr = fmt.Errorf("registering schema %s: %w", path, err)
				return
			}
			sch, err := compiler.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compiling schema %s: %w", path, err)
				return
			}
			compiled[kind] = sch
		}
	})
	return compiled, compileErr
}

// validate runs a decoded JSON document (map[string]any / []any / scalar
// tree, as produced by json.Unmarshal into `any`) against the schema for
// the given kind, returning a ManifestInvalid error listing every
// violation when validation fails.
func validate(kind Kind, source string, doc any) error {
	schemaMap, err := schemas()
	if err != nil {
		return err
	}
	sch, ok := schemaMap[kind]
	if !ok {
		return fmt.Errorf("no schema registered for kind %s", kind)
	}
	if err := sch.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if ok := errorsAs(err, &verr); ok {
			return &rudierr.ManifestInvalid{Source: source, Errors: flattenValidationErrors(verr)}
		}
		return &rudierr.ManifestInvalid{Source: source, Errors: []string{err.Error()}}
	}
	return nil
}

// errorsAs is a tiny local wrapper so this file doesn't need to import
// "errors" solely for one call site with a generic pointer target.
func errorsAs(err error, target **jsonschema.ValidationError) bool {
	for err != nil {
		if v, ok := err.(*jsonschema.ValidationError); ok {
			*target = v
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func flattenValidationErrors(verr *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if e == nil {
			return
		}
		out = append(out, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Error()))
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

// decodeToAny normalises arbitrary YAML/JSON bytes into the plain
// map[string]any / []any tree jsonschema.Validate expects, going through
// JSON so YAML's map[any]any doesn't leak into the schema layer.
func decodeToAny(jsonBytes []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
