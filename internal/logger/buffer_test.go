package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/tsvalidate/internal/models"
)

func TestBufferKeepsWriteOrder(t *testing.T) {
	b := NewBuffer()
	b.Info("")
	b.Infof("Processing `%s`...", "left-pad")
	b.Error("npm ERR! 404")
	b.Errorf("Error: %s", "npm failed")
	b.Info("Failed!")

	want := []models.LineRecord{
		{Level: models.LevelInfo, Text: ""},
		{Level: models.LevelInfo, Text: "Processing `left-pad`..."},
		{Level: models.LevelError, Text: "npm ERR! 404"},
		{Level: models.LevelError, Text: "Error: npm failed"},
		{Level: models.LevelInfo, Text: "Failed!"},
	}
	assert.Equal(t, want, b.Records())
	assert.Equal(t, 5, b.Len())
}

func TestBufferRecordsIsACopy(t *testing.T) {
	b := NewBuffer()
	b.Info("one")

	recs := b.Records()
	recs[0].Text = "changed"
	b.Info("two")

	assert.Equal(t, "one", b.Records()[0].Text)
	assert.Len(t, recs, 1)
}

func TestBuffersAreIsolated(t *testing.T) {
	a, b := NewBuffer(), NewBuffer()
	a.Info("from a")
	b.Error("from b")

	assert.Equal(t, []models.LineRecord{{Level: models.LevelInfo, Text: "from a"}}, a.Records())
	assert.Equal(t, []models.LineRecord{{Level: models.LevelError, Text: "from b"}}, b.Records())
}

func TestEmptyBuffer(t *testing.T) {
	b := NewBuffer()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Records())
}
