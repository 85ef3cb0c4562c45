// Package metadata reads and writes the ComicInfo.xml document embedded in
// chapter archives and keeps catalog titles and numbers in sync with it.
package metadata

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// EntryName is the archive entry holding chapter metadata.
const EntryName = "ComicInfo.xml"

// ComicInfo is the subset of the ComicInfo schema the catalog uses. Unknown
// elements are preserved in Extra so a rewrite does not lose them.
type ComicInfo struct {
	XMLName     xml.Name `xml:"ComicInfo"`
	Title       string   `xml:"Title,omitempty"`
	Series      string   `xml:"Series,omitempty"`
	Number      string   `xml:"Number,omitempty"`
	Volume      int      `xml:"Volume,omitempty"`
	Summary     string   `xml:"Summary,omitempty"`
	Year        int      `xml:"Year,omitempty"`
	Month       int      `xml:"Month,omitempty"`
	Writer      string   `xml:"Writer,omitempty"`
	Publisher   string   `xml:"Publisher,omitempty"`
	Genre       string   `xml:"Genre,omitempty"`
	PageCount   int      `xml:"PageCount,omitempty"`
	LanguageISO string   `xml:"LanguageISO,omitempty"`
	Manga       string   `xml:"Manga,omitempty"`
	Extra       []Field  `xml:",any"`
}

// Field is an element not modelled by ComicInfo.
type Field struct {
	XMLName xml.Name
	Value   string `xml:",innerxml"`
}

// Parse decodes a ComicInfo document.
func Parse(data []byte) (*ComicInfo, error) {
	var info ComicInfo
	if err := xml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse %s: %w", EntryName, err)
	}
	info.Title = strings.TrimSpace(info.Title)
	info.Series = strings.TrimSpace(info.Series)
	info.Number = strings.TrimSpace(info.Number)
	return &info, nil
}

// ParsedNumber returns Number as a float, or ok=false when absent or malformed.
func (c *ComicInfo) ParsedNumber() (float64, bool) {
	if c.Number == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(c.Number, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Marshal encodes the document with an XML header and two-space indent.
func (c *ComicInfo) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode %s: %w", EntryName, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FormatNumber renders a chapter number the way ComicInfo stores it: no
// trailing zeros, no exponent.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
