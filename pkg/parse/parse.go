// Package parse reads time-tracker export files (TSV or XML) into raw
// records. Parsers handle file structure only; semantic validation of the
// records is the normalizer's job.
package parse

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/normalize"
)

// Format identifies an input file format.
type Format string

// Supported input formats.
const (
	FormatTSV Format = "tsv"
	FormatXML Format = "xml"
)

// Encoding identifies the character encoding of an input file.
type Encoding string

// Supported input encodings. Older tracker exports are ISO 8859-1.
const (
	EncodingUTF8   Encoding = "utf8"
	EncodingLatin1 Encoding = "latin1"
)

// DetectFormat guesses the format from the file extension, defaulting to
// TSV.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return FormatXML
	}
	return FormatTSV
}

// File reads and parses the file at path.
func File(path string, format Format, enc Encoding) ([]normalize.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer f.Close()

	records, err := Reader(f, format, enc)
	if err != nil {
		if pe, ok := err.(*errors.ParseError); ok && pe.File == "" {
			pe.File = path
		}
		return nil, err
	}
	return records, nil
}

// Reader parses records from r in the given format and encoding.
func Reader(r io.Reader, format Format, enc Encoding) ([]normalize.RawRecord, error) {
	if enc == EncodingLatin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	switch format {
	case FormatXML:
		return XML(r)
	case FormatTSV, "":
		return TSV(r)
	default:
		return nil, errors.NewParseError(string(format), "", "unsupported format", nil)
	}
}
