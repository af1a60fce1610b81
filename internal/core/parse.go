package core

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// DeclaredType is the document type a file was uploaded as.
type DeclaredType string

const (
	DeclaredJSON DeclaredType = "json"
	DeclaredText DeclaredType = "text"
)

// DefaultMaxDepth bounds document nesting for parsing and flattening.
const DefaultMaxDepth = 256

var errInvalidJSON = errors.New("invalid JSON document")

// Parser turns raw document text into a Value.
//
// Strict JSON is always tried first. Text uploads fall back to delimited
// parsing with a header row and scalar type inference unless
// DisableDelimited is set.
type Parser struct {
	// MaxDepth limits nesting of the parsed document (0 uses DefaultMaxDepth).
	MaxDepth int

	// DisableDelimited turns off the delimited-text fallback for text uploads.
	DisableDelimited bool
}

// Parse parses raw with the default parser settings.
func Parse(raw string, declared DeclaredType) (Value, error) {
	return Parser{}.Parse(raw, declared)
}

// Parse interprets raw as JSON, or as delimited text when raw is not JSON and
// the file was declared as text.
func (p Parser) Parse(raw string, declared DeclaredType) (Value, error) {
	v, jsonErr := p.parseJSON(raw)
	if jsonErr == nil {
		return v, nil
	}
	if errors.Is(jsonErr, ErrDepthExceeded) {
		return Value{}, &FailureError{Kind: KindUnsupportedStructure, Err: jsonErr}
	}

	if declared != DeclaredText || p.DisableDelimited {
		return Value{}, parseFailure(FormatJSON, jsonErr)
	}

	v, err := parseDelimited(raw)
	if err != nil {
		return Value{}, parseFailure(FormatDelimited, err)
	}
	return v, nil
}

func (p Parser) maxDepth() int {
	if p.MaxDepth > 0 {
		return p.MaxDepth
	}
	return DefaultMaxDepth
}

// parseJSON validates raw as strict JSON, then walks it in document order.
func (p Parser) parseJSON(raw string) (Value, error) {
	if !gjson.Valid(raw) {
		return Value{}, errInvalidJSON
	}
	return fromResult(gjson.Parse(raw), 0, p.maxDepth())
}

func fromResult(r gjson.Result, depth, maxDepth int) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.Number:
		return Number(r.Num), nil
	case gjson.String:
		return String(r.Str), nil
	}

	if depth >= maxDepth {
		return Value{}, fmt.Errorf("%w: more than %d levels", ErrDepthExceeded, maxDepth)
	}

	var walkErr error
	switch {
	case r.IsArray():
		items := make([]Value, 0)
		r.ForEach(func(_, item gjson.Result) bool {
			v, err := fromResult(item, depth+1, maxDepth)
			if err != nil {
				walkErr = err
				return false
			}
			items = append(items, v)
			return true
		})
		if walkErr != nil {
			return Value{}, walkErr
		}
		return Array(items...), nil

	case r.IsObject():
		obj := Object()
		r.ForEach(func(key, member gjson.Result) bool {
			v, err := fromResult(member, depth+1, maxDepth)
			if err != nil {
				walkErr = err
				return false
			}
			obj.set(key.Str, v)
			return true
		})
		if walkErr != nil {
			return Value{}, walkErr
		}
		return obj, nil
	}

	return Value{}, errInvalidJSON
}
