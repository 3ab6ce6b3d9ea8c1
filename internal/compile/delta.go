package compile

import "tracq/internal/query"

// Fields with native incremental endpoints on GitHub; every other
// collection falls back to read-modify-write.
var githubNativeDelta = map[string]bool{
	"labels":   true,
	"assignee": true,
}

// CompileDelta compiles a collection mutation into an update fragment.
// Backends without native add/remove support get a NeedsRead fragment: the
// adapter reads the current remote value, applies Add/Remove locally, and
// re-compiles the result with CompileSet. That read-modify-write cycle is
// not atomic.
func CompileDelta(backend Backend, field string, d query.DeltaList) (Fragment, error) {
	spec, ok := lookupField(backend, field)
	if !ok || spec.update == "" || spec.create {
		return Fragment{}, unsupported(backend, field, "update")
	}
	if !spec.list {
		return compileScalarDelta(backend, spec, field, d)
	}

	f := Fragment{Backend: backend, Field: field}
	switch {
	case d.Clear:
		f.Update = map[string]any{spec.update: updateBody(backend, []string{})}
	case len(d.Set) > 0:
		f.Update = map[string]any{spec.update: updateBody(backend, d.Set)}
	default:
		switch {
		case backend == Bugzilla:
			body := map[string]any{}
			if len(d.Add) > 0 {
				body["add"] = d.Add
			}
			if len(d.Remove) > 0 {
				body["remove"] = d.Remove
			}
			f.Update = map[string]any{spec.update: body}
		case backend == GitHub && githubNativeDelta[field]:
			f.Add = d.Add
			f.Remove = d.Remove
		default:
			f.Add = d.Add
			f.Remove = d.Remove
			f.NeedsRead = true
		}
	}
	return f, nil
}

// CompileSet compiles a full replacement of a field's value. Adapters use it
// as the write half of the read-modify-write fallback, and for scalar
// updates given on the command line.
func CompileSet(backend Backend, field string, values []string) (Fragment, error) {
	spec, ok := lookupField(backend, field)
	if !ok || spec.update == "" || spec.create {
		return Fragment{}, unsupported(backend, field, "update")
	}
	f := Fragment{Backend: backend, Field: field}
	if spec.list {
		f.Update = map[string]any{spec.update: updateBody(backend, values)}
		return f, nil
	}
	if len(values) != 1 {
		return Fragment{}, unsupported(backend, field, "multi-value")
	}
	f.Update = map[string]any{spec.update: values[0]}
	return f, nil
}

func compileScalarDelta(backend Backend, spec fieldSpec, field string, d query.DeltaList) (Fragment, error) {
	f := Fragment{Backend: backend, Field: field}
	switch {
	case d.Clear:
		f.Update = map[string]any{spec.update: ""}
	case len(d.Set) == 1:
		f.Update = map[string]any{spec.update: d.Set[0]}
	default:
		// Scalar fields have no incremental form and hold one value.
		op := "add/remove"
		if len(d.Set) > 1 {
			op = "multi-value"
		}
		return Fragment{}, unsupported(backend, field, op)
	}
	return f, nil
}

// updateBody shapes a list replacement the way the backend's update endpoint
// expects it: Bugzilla wraps replacements in a "set" object, the others take
// the array directly.
func updateBody(backend Backend, values []string) any {
	if backend == Bugzilla {
		return map[string]any{"set": values}
	}
	return values
}
