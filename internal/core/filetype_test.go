package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType_Declared(t *testing.T) {
	tests := []struct {
		declared string
		want     DeclaredType
		wantErr  bool
	}{
		{"application/json", DeclaredJSON, false},
		{"application/json; charset=utf-8", DeclaredJSON, false},
		{"TEXT/PLAIN", DeclaredText, false},
		{"text/plain;charset=UTF-8", DeclaredText, false},
		{"image/png", "", true},
		{"text/csv", "", true},
		{"", "", true},
		{"application/octet-stream", "", true},
		{"application/vnd.ms-excel", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			got, err := DetectType(tt.declared)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
