package output

import (
	"encoding/json"
	"io"

	"github.com/verikit/verikit/internal/orchestrator"
)

// JSONRenderer emits structured run reports.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Render encodes the report as indented JSON.
func (j *JSONRenderer) Render(report orchestrator.Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
