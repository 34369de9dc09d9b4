package output

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/garagon/sifter/internal/types"
)

// HTMLFormatter renders the Markdown report as a standalone HTML page.
type HTMLFormatter struct{}

const htmlStyle = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:1100px;margin:2em auto;padding:0 1em;color:#24292f}
table{border-collapse:collapse;margin:1em 0}th,td{border:1px solid #d0d7de;padding:4px 10px;text-align:left}
code{background:#f6f8fa;padding:1px 4px;border-radius:4px}`

func (f *HTMLFormatter) Format(w io.Writer, report *types.Report) error {
	var md bytes.Buffer
	// Plain headings: goldmark escapes raw HTML blocks by default.
	if err := (&MarkdownFormatter{NoDetails: true}).Format(&md, report); err != nil {
		return err
	}

	var body bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := conv.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}

	title := fmt.Sprintf("sifter report %s", report.RunID)
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), htmlStyle, body.String())
	return err
}
