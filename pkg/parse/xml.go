package parse

import (
	"encoding/xml"
	"io"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/normalize"
)

// xmlFact mirrors one <fact .../> element. All fields are attributes, as
// written by tracker export tools.
type xmlFact struct {
	Activity    string `xml:"activity,attr"`
	Name        string `xml:"name,attr"` // older exports use name=
	Start       string `xml:"start,attr"`
	End         string `xml:"end,attr"`
	Category    string `xml:"category,attr"`
	Description string `xml:"description,attr"`
	Tags        string `xml:"tags,attr"`
}

// xmlFacts is the <facts> document root.
type xmlFacts struct {
	XMLName xml.Name  `xml:"facts"`
	Facts   []xmlFact `xml:"fact"`
}

// XML parses a <facts> document into raw records.
func XML(r io.Reader) ([]normalize.RawRecord, error) {
	var doc xmlFacts
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.NewParseError("xml", "", "empty document", err)
		}
		return nil, errors.NewParseError("xml", "", err.Error(), err)
	}

	records := make([]normalize.RawRecord, 0, len(doc.Facts))
	for _, f := range doc.Facts {
		activity := f.Activity
		if activity == "" {
			activity = f.Name
		}
		records = append(records, normalize.RawRecord{
			Activity:    activity,
			Start:       f.Start,
			End:         f.End,
			Category:    f.Category,
			Description: f.Description,
			Tags:        f.Tags,
		})
	}
	return records, nil
}
