package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
)

// decodeLenient unmarshals oracle output into v. Hosted models wrap JSON in
// prose or emit almost-JSON, so after a strict parse fails we extract the
// outermost JSON value and run it through jsonrepair before giving up.
// A final failure is ErrOracleMalformed; callers treat that as an empty
// result, never as a fatal turn error.
func decodeLenient(raw []byte, v any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return fmt.Errorf("empty oracle payload: %w", apperrors.ErrOracleMalformed)
	}

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	if extracted := extractJSON(trimmed); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), v); err == nil {
			return nil
		}
		trimmed = extracted
	}

	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return fmt.Errorf("json repair failed: %v: %w", err, apperrors.ErrOracleMalformed)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("repaired payload still invalid: %v: %w", err, apperrors.ErrOracleMalformed)
	}
	return nil
}

// extractJSON pulls the outermost {...} or [...] block out of surrounding
// prose, whichever opens first. Returns "" when no block is found.
func extractJSON(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start, closer := objStart, byte('}')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start, closer = arrStart, ']'
	}
	if start < 0 {
		return ""
	}

	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
