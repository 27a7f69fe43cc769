package main

import (
	"encoding/json"
	"io"
)

// writeJSON emits v as indented JSON followed by a newline.
func writeJSON(out io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = out.Write(payload)
	return err
}
