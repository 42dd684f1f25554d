// Package pptx extracts text from presentations (OOXML).
package pptx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// slidePattern matches slide parts like ppt/slides/slide12.xml.
var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extractor handles PPTX presentations.
type Extractor struct{}

// New creates a PPTX extractor.
func New() *Extractor {
	return &Extractor{}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
}

// Extract walks the slides in deck order and appends the text of every
// shape that carries text, one line per text body.
func (e *Extractor) Extract(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a valid pptx archive: %v", domain.ErrDecode, err)
	}

	type slideFile struct {
		number int
		file   *zip.File
	}
	var slides []slideFile
	for _, f := range reader.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{number: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var parts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", domain.ErrDecode, s.number, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", domain.ErrDecode, s.number, err)
		}

		text, err := parseSlideXML(content)
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.number, err)
		}
		parts = append(parts, text...)
	}

	return strings.Join(parts, "\n"), nil
}

// parseSlideXML collects the text runs of each text body on a slide.
// DrawingML nests runs as sp > txBody > p > r > t; decoding tokens keeps
// this independent of the namespace prefixes in use.
func parseSlideXML(content []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var texts []string
	var body strings.Builder
	inTextBody := false
	inRunText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "txBody":
				inTextBody = true
				body.Reset()
			case "t":
				if inTextBody {
					inRunText = true
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "txBody":
				inTextBody = false
				if s := body.String(); s != "" {
					texts = append(texts, s)
				}
			case "t":
				inRunText = false
			}
		case xml.CharData:
			if inRunText {
				body.Write(t)
			}
		}
	}

	return texts, nil
}
