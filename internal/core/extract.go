package core

// Envelope field names for documents shaped {"Payload": {"Data": [...]}}.
const (
	EnvelopePayloadField = "Payload"
	EnvelopeDataField    = "Data"
)

// Extract locates the record array inside a parsed document:
//
//  1. {"Payload": {"Data": [...]}} yields the elements of Data
//  2. an array yields its elements
//  3. any other object yields a single record
//  4. scalars and null fail with ErrUnsupportedStructure
func Extract(v Value) ([]Value, error) {
	if data, ok := envelopeData(v); ok {
		return data.Items(), nil
	}

	switch v.Kind() {
	case KindArray:
		return v.Items(), nil
	case KindObject:
		return []Value{v}, nil
	}
	return nil, unsupportedStructure("document is a " + v.Kind().String())
}

func envelopeData(v Value) (Value, bool) {
	payload, ok := v.Field(EnvelopePayloadField)
	if !ok || !payload.IsObject() {
		return Value{}, false
	}
	data, ok := payload.Field(EnvelopeDataField)
	if !ok || !data.IsArray() {
		return Value{}, false
	}
	return data, true
}
