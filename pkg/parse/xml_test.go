package parse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/parse"
)

func TestXMLBasic(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?>
<facts>
  <fact activity="meeting" start="2024-01-15 09:00:00" end="2024-01-15 10:00:00"
        category="work" description="weekly sync" tags="standup,planning"/>
  <fact activity="lunch" start="2024-01-15 11:00:00" end="2024-01-15 12:00:00"/>
</facts>`

	records, err := parse.XML(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "meeting", records[0].Activity)
	assert.Equal(t, "2024-01-15 09:00:00", records[0].Start)
	assert.Equal(t, "2024-01-15 10:00:00", records[0].End)
	assert.Equal(t, "work", records[0].Category)
	assert.Equal(t, "weekly sync", records[0].Description)
	assert.Equal(t, "standup,planning", records[0].Tags)

	assert.Equal(t, "lunch", records[1].Activity)
	assert.Empty(t, records[1].Tags)
}

func TestXMLNameAttributeFallback(t *testing.T) {
	input := `<facts><fact name="call" start="2024-01-15 10:00" end="2024-01-15 10:30"/></facts>`

	records, err := parse.XML(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "call", records[0].Activity)
}

func TestXMLOpenEndedFact(t *testing.T) {
	input := `<facts><fact activity="running" start="2024-01-15 10:00"/></facts>`

	records, err := parse.XML(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].End)
}

func TestXMLEmptyDocument(t *testing.T) {
	records, err := parse.XML(strings.NewReader("<facts></facts>"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestXMLMalformed(t *testing.T) {
	_, err := parse.XML(strings.NewReader("<facts><fact"))
	require.Error(t, err)
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestXMLEmptyInput(t *testing.T) {
	_, err := parse.XML(strings.NewReader(""))
	require.Error(t, err)
}
