package logger

import (
	"fmt"

	"github.com/harrison/tsvalidate/internal/models"
)

// Buffer is an isolated, in-memory log owned by a single package validator.
// Records keep the order in which they were written. A Buffer is not safe
// for concurrent use; each validator goroutine owns exactly one, and the
// records are handed to the report only after the validator finishes.
type Buffer struct {
	records []models.LineRecord
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Info appends an info-level line.
func (b *Buffer) Info(text string) {
	b.records = append(b.records, models.LineRecord{Level: models.LevelInfo, Text: text})
}

// Infof appends a formatted info-level line.
func (b *Buffer) Infof(format string, args ...interface{}) {
	b.Info(fmt.Sprintf(format, args...))
}

// Error appends an error-level line.
func (b *Buffer) Error(text string) {
	b.records = append(b.records, models.LineRecord{Level: models.LevelError, Text: text})
}

// Errorf appends a formatted error-level line.
func (b *Buffer) Errorf(format string, args ...interface{}) {
	b.Error(fmt.Sprintf(format, args...))
}

// Len returns the number of records written so far.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Records returns a copy of the records in write order.
func (b *Buffer) Records() []models.LineRecord {
	out := make([]models.LineRecord, len(b.records))
	copy(out, b.records)
	return out
}
