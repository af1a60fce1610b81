package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// String returns the lowercase JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Member is a single key/value pair of an object Value.
type Member struct {
	Key   string
	Value Value
}

// Value is a parsed document node. Exactly one of the payload fields is
// meaningful, selected by Kind. Object members keep document order.
type Value struct {
	kind    Kind
	b       bool
	n       float64
	s       string
	members []Member
	items   []Value
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array Value holding items in order.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Object returns an object Value. A repeated key keeps its first position
// and takes the last value, the same way JSON.parse treats duplicates.
func Object(members ...Member) Value {
	v := Value{kind: KindObject, members: make([]Member, 0, len(members))}
	for _, m := range members {
		v.set(m.Key, m.Value)
	}
	return v
}

// M is shorthand for building a Member.
func M(key string, value Value) Member { return Member{Key: key, Value: value} }

func (v *Value) set(key string, value Value) {
	for i := range v.members {
		if v.members[i].Key == key {
			v.members[i].Value = value
			return
		}
	}
	v.members = append(v.members, Member{Key: key, Value: value})
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsObject reports whether v is a (non-null) object.
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsArray reports whether v is an array.
func (v Value) IsArray() bool { return v.kind == KindArray }

// IsScalar reports whether v is null, boolean, number or string.
func (v Value) IsScalar() bool { return v.kind != KindObject && v.kind != KindArray }

// BoolValue returns the boolean payload.
func (v Value) BoolValue() bool { return v.b }

// NumberValue returns the numeric payload.
func (v Value) NumberValue() float64 { return v.n }

// StringValue returns the string payload.
func (v Value) StringValue() string { return v.s }

// Members returns the object members in document order.
func (v Value) Members() []Member { return v.members }

// Items returns the array elements.
func (v Value) Items() []Value { return v.items }

// Len returns the number of members or items, 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.members)
	case KindArray:
		return len(v.items)
	}
	return 0
}

// Field looks up an object member by key.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Text renders a scalar for display and CSV cells. Null renders empty,
// non-scalars render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return v.s
	}
	return v.JSON()
}

// JSON returns the compact JSON encoding of v with keys in document order.
func (v Value) JSON() string {
	var buf bytes.Buffer
	v.appendJSON(&buf)
	return buf.String()
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	v.appendJSON(&buf)
	return buf.Bytes(), nil
}

func (v Value) appendJSON(buf *bytes.Buffer) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			buf.WriteString("null")
			return
		}
		buf.WriteString(FormatNumber(v.n))
	case KindString:
		writeJSONString(buf, v.s)
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, m.Key)
			buf.WriteByte(':')
			m.Value.appendJSON(buf)
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.appendJSON(buf)
		}
		buf.WriteByte(']')
	}
}

// lineSeparators are written unescaped, as JSON.stringify does, while
// encoding/json always escapes them.
const lineSeparators = "\u2028\u2029"

func writeJSONString(buf *bytes.Buffer, s string) {
	if !strings.ContainsAny(s, lineSeparators) {
		encodeJSONString(buf, s)
		return
	}

	var seg bytes.Buffer
	buf.WriteByte('"')
	for s != "" {
		i := strings.IndexAny(s, lineSeparators)
		if i < 0 {
			i = len(s)
		}
		seg.Reset()
		encodeJSONString(&seg, s[:i])
		buf.Write(seg.Bytes()[1 : seg.Len()-1])
		if i == len(s) {
			break
		}
		_, n := utf8.DecodeRuneInString(s[i:])
		buf.WriteString(s[i : i+n])
		s = s[i+n:]
	}
	buf.WriteByte('"')
}

func encodeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
}

// FormatNumber renders n the way JavaScript's Number#toString does for the
// common range: integers without a fraction, plain decimals between 1e-6 and
// 1e21, exponent notation outside it.
func FormatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'e', -1, 64)
		// Go writes e+07 where JavaScript writes e+7.
		mant, exp, ok := cutExponent(s)
		if !ok {
			return s
		}
		return mant + "e" + exp
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func cutExponent(s string) (string, string, bool) {
	i := strings.IndexByte(s, 'e')
	if i < 0 {
		return s, "", false
	}
	mant, exp := s[:i], s[i+1:]
	sign := ""
	if exp != "" && (exp[0] == '+' || exp[0] == '-') {
		sign, exp = exp[:1], exp[1:]
	}
	for len(exp) > 1 && exp[0] == '0' {
		exp = exp[1:]
	}
	return mant, sign + exp, true
}
