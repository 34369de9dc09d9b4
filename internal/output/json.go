package output

import (
	"encoding/json"
	"io"

	"github.com/garagon/sifter/internal/types"
)

// JSONFormatter outputs the report as an indented JSON document.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, report *types.Report) error {
	if report.Issues == nil {
		r := *report
		r.Issues = []types.Issue{}
		report = &r
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
