package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/easeaico/adk-rule-memory/internal/tools"
)

// writeResult prints a tool result. A failed result is also returned as an
// error so the process exits non-zero.
func writeResult(w io.Writer, format string, res tools.ToolResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	}

	if !res.Success {
		return errors.New(res.Error)
	}
	_, err := fmt.Fprintln(w, res.Data)
	return err
}
