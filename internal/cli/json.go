package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/anchor/internal/output"
)

// cmdFormat returns the command's resolved output format, text when unset.
func cmdFormat(cmd *cobra.Command) output.Format {
	cc := GetCmdContext(cmd)
	if cc.Fmt == nil {
		return output.FormatText
	}
	return cc.Fmt.Format()
}

// render writes v as JSON in JSON mode and calls text otherwise.
func render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	return output.NewFormatter(cmdFormat(cmd), cmd.OutOrStdout()).Render(v, text)
}
