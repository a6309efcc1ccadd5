package options

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/cachemap/pkg/printers"
)

// OutputOptions
type OutputOptions struct {
	JSON   bool
	Output string
}

func AddOutputArg(cmd *cobra.Command, po *OutputOptions) {
	cmd.Flags().BoolVar(&po.JSON, "json", false,
		"Output as JSON.")
	cmd.Flags().StringVarP(&po.Output, "output", "o", "",
		"Output format. One of 'table', 'json' or 'yaml'.")
}

// Format resolves --json and --output. --json wins.
func (o *OutputOptions) Format() printers.Format {
	if o.JSON {
		return printers.FormatJSON
	}
	switch strings.ToLower(o.Output) {
	case "json":
		return printers.FormatJSON
	case "yaml", "yml":
		return printers.FormatYAML
	}
	return printers.FormatTable
}

func (o *OutputOptions) Printer() *printers.Printer {
	return printers.New(o.Format())
}

// HandleError reports err as a JSON object on w when a structured format is
// selected, and returns err unchanged for table output. A nil w writes to
// color.Output.
func (o *OutputOptions) HandleError(w io.Writer, err error) error {
	if err == nil || o.Format() == printers.FormatTable {
		return err
	}
	out := map[string]string{
		"error": err.Error(),
	}
	b, merr := json.Marshal(out)
	if merr != nil {
		return merr
	}
	if w == nil {
		w = color.Output
	}
	_, _ = fmt.Fprintln(w, string(b))
	return nil
}
