// Package templates renders the flatsheet HTML views. The views are written
// in .templ files; run `templ generate` after editing them.
package templates

import (
	"strconv"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/history"
)

// exportFormats are offered in this order.
var exportFormats = []core.ExportFormat{core.ExportXLSX, core.ExportCSV}

func progressLabel(st core.State) string {
	if st.Phase == core.SessionProcessing {
		return "Processing " + st.FileName
	}
	return "Reading " + st.FileName
}

func summary(st core.State) string {
	return plural(st.Dataset.Len(), "row", "rows") + ", " + plural(len(st.Columns()), "column", "columns")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return strconv.Itoa(n) + " " + one
	}
	return strconv.Itoa(n) + " " + many
}

// cell renders the value at key, or nothing when the record lacks it.
func cell(r core.FlatRecord, key string) string {
	if v, ok := r.Get(key); ok {
		return v.Text()
	}
	return ""
}

func outcome(e history.Entry) string {
	if e.Succeeded() {
		return "ok"
	}
	return e.ErrorCode
}
