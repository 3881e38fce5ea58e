package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// writeJSON prints v for --json output.
func writeJSON(cmd *cobra.Command, v any) error {
	return encodeIndented(cmd.OutOrStdout(), v)
}

// encodeIndented writes v as two-space indented JSON followed by a newline,
// the layout both --json output and saved draft files use.
func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
