package output

import (
	"encoding/xml"
	"io"

	"github.com/garagon/sifter/internal/types"
)

// CheckstyleFormatter outputs issues in Checkstyle XML, understood by most
// CI annotation tools.
type CheckstyleFormatter struct{}

type checkstyleReport struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Version string           `xml:"version,attr"`
	Files   []checkstyleFile `xml:"file"`
}

type checkstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []checkstyleError `xml:"error"`
}

type checkstyleError struct {
	Line     int    `xml:"line,attr"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

func (f *CheckstyleFormatter) Format(w io.Writer, report *types.Report) error {
	out := checkstyleReport{Version: "6.5"}
	for _, group := range groupByFile(report.Issues) {
		cf := checkstyleFile{Name: group.filePath}
		for _, is := range group.issues {
			cf.Errors = append(cf.Errors, checkstyleError{
				Line:     is.Line,
				Severity: checkstyleSeverity(is.Severity),
				Message:  is.Message,
				Source:   is.Category,
			})
		}
		out.Files = append(out.Files, cf)
	}
	for _, sf := range report.Failures {
		out.Files = append(out.Files, checkstyleFile{
			Name: sf.File,
			Errors: []checkstyleError{{
				Severity: "error",
				Message:  sf.Error(),
				Source:   "sifter.ShardFailure",
			}},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func checkstyleSeverity(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical:
		return "error"
	case types.SeverityNormal:
		return "warning"
	default:
		return "info"
	}
}
