package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/sieve/internal/pipeline"
)

// Formats lists the accepted output formats.
var Formats = []string{"json", "text", "markdown"}

// Writer formats a run result for output.
type Writer interface {
	Write(w io.Writer, res pipeline.Result) error
}

// GetWriter returns the appropriate writer for the given format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "json", "":
		return &JSONWriter{}, nil
	case "text":
		return &TextWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q (supported: json, text, markdown)", format)
	}
}

// WriteResult writes res in the given format to outPath, or to stdout when
// outPath is empty.
func WriteResult(res pipeline.Result, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	if outPath == "" {
		return writer.Write(os.Stdout, res)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writer.Write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
