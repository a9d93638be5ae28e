package cli

import (
	"encoding/json"
	"io"
	"strings"
)

// writeJSON renders v indented, one document per invocation.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// oneLine flattens a stored error message for tabular output.
func oneLine(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "\n", " ")
}
