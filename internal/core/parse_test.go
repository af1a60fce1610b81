package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSON(t *testing.T) {
	v, err := Parse(`{"b":1,"a":{"y":true,"x":null},"c":[1,"two"]}`, DeclaredJSON)
	require.NoError(t, err)

	require.True(t, v.IsObject())
	keys := make([]string, 0)
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"b", "a", "c"}, keys, "document order is kept")
	assert.Equal(t, `{"b":1,"a":{"y":true,"x":null},"c":[1,"two"]}`, v.JSON())
}

func TestParse_JSONWinsForTextUploads(t *testing.T) {
	v, err := Parse(`[{"a":1}]`, DeclaredText)
	require.NoError(t, err)
	assert.True(t, v.IsArray())
}

func TestParse_DuplicateKeysLastValueWins(t *testing.T) {
	v, err := Parse(`{"a":1,"b":2,"a":3}`, DeclaredJSON)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"b":2}`, v.JSON())
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		declared DeclaredType
		wantErr  error
	}{
		{"invalid json upload", `{"a":`, DeclaredJSON, ErrParseJSON},
		{"delimited text declared as json", "a,b\n1,2", DeclaredJSON, ErrParseJSON},
		{"trailing comma", `[1,2,]`, DeclaredJSON, ErrParseJSON},
		{"field count mismatch", "a,b\n1,2\n3", DeclaredText, ErrParseDelimited},
		{"bad quoting", "a,b\n\"1,2\n", DeclaredText, ErrParseDelimited},
		{"single column", "only\nx\ny", DeclaredText, ErrParseDelimited},
		{"prose", "hello world\nthis is prose\nnot a table", DeclaredText, ErrParseDelimited},
		{"empty text", "", DeclaredText, ErrParseDelimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, tt.declared)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var fe *FailureError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, KindParseFailure, fe.Kind)
		})
	}
}

func TestParse_DelimitedFallback(t *testing.T) {
	raw := "name,age,active,score,note\nana,31,true,1.5,\nben,,FALSE,-2e3,hi there\n"

	v, err := Parse(raw, DeclaredText)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"name":"ana","age":31,"active":true,"score":1.5,"note":null},`+
			`{"name":"ben","age":null,"active":false,"score":-2000,"note":"hi there"}]`,
		v.JSON())
}

func TestParse_DelimiterDetection(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"tab", "a\tb\n1\t2", `[{"a":1,"b":2}]`},
		{"pipe", "a|b\nx|y", `[{"a":"x","b":"y"}]`},
		{"semicolon", "a;b\n1,5;2", `[{"a":"1,5","b":2}]`},
		{"widest candidate wins", "a;b;c,d\n1;2;3,4", `[{"a":1,"b":2,"c,d":"3,4"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.raw, DeclaredText)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.JSON())
		})
	}
}

func TestGuessDelimiter(t *testing.T) {
	d, err := guessDelimiter("a|b|c\n1|2|3")
	require.NoError(t, err)
	assert.Equal(t, '|', d)

	_, err = guessDelimiter("hello world\nthis is prose")
	assert.ErrorIs(t, err, errDelimiterNotDetected)
}

func TestParse_DelimitedDuplicateHeaders(t *testing.T) {
	v, err := Parse("id,id,id_1,id\n1,2,3,4", DeclaredText)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"id_1":2,"id_1_1":3,"id_2":4}]`, v.JSON())
}

func TestParse_DelimitedBlankLines(t *testing.T) {
	v, err := Parse("a,b\n\n1,2\n\n3,4\n\n", DeclaredText)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
}

func TestParse_DelimitedHeaderOnly(t *testing.T) {
	v, err := Parse("a,b\n", DeclaredText)
	require.NoError(t, err)
	assert.True(t, v.IsArray())
	assert.Equal(t, 0, v.Len())
}

func TestParse_DepthLimit(t *testing.T) {
	raw := strings.Repeat("[", 10) + strings.Repeat("]", 10)

	_, err := Parser{MaxDepth: 5}.Parse(raw, DeclaredJSON)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedStructure)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	_, err = Parser{MaxDepth: 20}.Parse(raw, DeclaredJSON)
	assert.NoError(t, err)
}

func TestParse_DisableDelimited(t *testing.T) {
	_, err := Parser{DisableDelimited: true}.Parse("a,b\n1,2", DeclaredText)
	assert.ErrorIs(t, err, ErrParseJSON)
}

func TestInferScalar(t *testing.T) {
	tests := []struct {
		cell string
		want Value
	}{
		{"", Null()},
		{"true", Bool(true)},
		{"TRUE", Bool(true)},
		{"True", String("True")},
		{"false", Bool(false)},
		{"42", Number(42)},
		{"-0.5", Number(-0.5)},
		{".5", Number(0.5)},
		{"3.", Number(3)},
		{"1e3", Number(1000)},
		{" 7 ", Number(7)},
		{"0x1F", String("0x1F")},
		{"12abc", String("12abc")},
		{"2024-01-02", String("2024-01-02")},
		{"9007199254740993", String("9007199254740993")},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			assert.Equal(t, tt.want, inferScalar(tt.cell))
		})
	}
}
