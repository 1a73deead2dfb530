package main

import (
	"encoding/json"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	successColor = color.New(color.FgHiGreen)
	warnColor    = color.New(color.FgHiYellow)
	errorColor   = color.New(color.FgHiRed)
	dimColor     = color.New(color.FgHiBlack)
)

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mark(ok bool) string {
	if ok {
		return successColor.Sprint("✓")
	}
	return errorColor.Sprint("✗")
}
