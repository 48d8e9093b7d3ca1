package parser

import "encoding/json"

// formatJSON renders a Record's data as canonical JSON, the default
// persistable representation shared by every parser's Format method.
func formatJSON(rec Record) ([]byte, string, error) {
	out, err := json.Marshal(rec.RecordData)
	if err != nil {
		return nil, "", err
	}
	return out, "application/json", nil
}
