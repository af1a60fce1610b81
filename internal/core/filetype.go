package core

import (
	"mime"
	"strings"
)

// Accepted upload media types.
const (
	MIMEJSON = "application/json"
	MIMEText = "text/plain"
)

// DetectType maps a declared media type to the parser's input type.
// Parameters such as charset are ignored. Anything other than JSON or plain
// text, including an empty type, fails with ErrUnsupportedFileType.
func DetectType(declared string) (DeclaredType, error) {
	switch mediaType(declared) {
	case MIMEJSON:
		return DeclaredJSON, nil
	case MIMEText:
		return DeclaredText, nil
	}
	return "", unsupportedFileType(declared)
}

func mediaType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(declared)
	}
	return mt
}
