package compile

// CompileCreate compiles one field of a new record into a fragment whose
// Update holds the field's plain wire value: lists as arrays, scalars as
// strings. Creation payloads never use the delta wrapper shapes that update
// endpoints want, so CompileSet does not apply here.
func CompileCreate(backend Backend, field string, values []string) (Fragment, error) {
	spec, ok := lookupField(backend, field)
	if !ok || spec.update == "" {
		return Fragment{}, unsupported(backend, field, "create")
	}
	f := Fragment{Backend: backend, Field: field}
	if spec.list {
		f.Update = map[string]any{spec.update: values}
		return f, nil
	}
	if len(values) != 1 {
		return Fragment{}, unsupported(backend, field, "multi-value")
	}
	f.Update = map[string]any{spec.update: values[0]}
	return f, nil
}
