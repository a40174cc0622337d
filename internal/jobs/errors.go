package jobs

import (
	"errors"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrStaleStage = errors.New("stage is not the immediate successor")
	ErrTerminal   = errors.New("job already terminal")
	ErrBadSource  = errors.New("invalid source url")
	ErrBadBatch   = errors.New("batch must carry between 1 and 20 source urls")
)

// sanitizeError flattens an error into a single stored line.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
