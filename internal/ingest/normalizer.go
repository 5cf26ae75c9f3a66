// Package ingest turns uploaded member tables into validated rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dtroode/memberpass/internal/model"
)

// SniffSampleSize is the number of leading bytes inspected for the delimiter.
const SniffSampleSize = 4096

const sniffMaxLines = 10

var utf8BOM = []byte("\xef\xbb\xbf")

// CandidateDelimiters are tried in order when sniffing.
var CandidateDelimiters = []rune{';', ',', '|', '\t'}

type alias struct {
	field    string
	variants []string
}

// Resolution order matters: the first variant found in the header wins.
var aliases = []alias{
	{field: model.FieldEmail, variants: []string{"email", "e-mail", "e_mail", "mail", "emailadresse", "adresse"}},
	{field: model.FieldFirstName, variants: []string{"vorname", "firstname", "first_name", "first"}},
	{field: model.FieldLastName, variants: []string{"nachname", "lastname", "last_name", "last"}},
	{field: model.FieldJoinDate, variants: []string{"eintritt", "eintrittsdatum", "beitritt", "beitrittsdatum", "joindate", "join"}},
	{field: model.FieldRole, variants: []string{"rolle", "role", "funktion", "position"}},
}

var requiredFields = []string{model.FieldEmail, model.FieldFirstName, model.FieldLastName}

var digraphs = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Sheet is a parsed upload whose header has been mapped to canonical
// fields. Its rows are read lazily and only once.
type Sheet struct {
	Delimiter rune
	Headers   []string
	Columns   map[string]int

	reader *csv.Reader
	err    error
}

// Parse decodes raw upload bytes, detects the delimiter, and resolves
// the header row. It fails with *model.IngestError when a mandatory
// field cannot be mapped.
func Parse(data []byte, fallback rune) (*Sheet, error) {
	content := decode(data)
	delimiter := Sniff(content, fallback)

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	columns, err := ResolveColumns(headers)
	if err != nil {
		return nil, err
	}

	return &Sheet{
		Delimiter: delimiter,
		Headers:   headers,
		Columns:   columns,
		reader:    reader,
	}, nil
}

// Rows yields every non-blank data row. Iteration stops early on a read
// error, which is then reported by Err.
func (s *Sheet) Rows() iter.Seq[model.RawRow] {
	return func(yield func(model.RawRow) bool) {
		for {
			record, err := s.reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				s.err = fmt.Errorf("failed to read row: %w", err)
				return
			}
			if blank(record) {
				continue
			}

			line, _ := s.reader.FieldPos(0)
			fields := make(map[string]string, len(s.Columns))
			for field, idx := range s.Columns {
				if idx < len(record) {
					fields[field] = record[idx]
				} else {
					fields[field] = ""
				}
			}
			if !yield(model.RawRow{Line: line, Fields: fields}) {
				return
			}
		}
	}
}

// Err returns the first read error encountered by Rows.
func (s *Sheet) Err() error {
	return s.err
}

// ResolveColumns maps canonical fields to header indexes via the alias table.
func ResolveColumns(headers []string) (map[string]int, error) {
	normalized := make(map[string]int, len(headers))
	for i, h := range headers {
		n := NormalizeHeader(h)
		if _, ok := normalized[n]; !ok {
			normalized[n] = i
		}
	}

	columns := make(map[string]int, len(aliases))
	for _, a := range aliases {
		for _, variant := range a.variants {
			if idx, ok := normalized[NormalizeHeader(variant)]; ok {
				columns[a.field] = idx
				break
			}
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &model.IngestError{Missing: missing, Seen: headers}
	}
	return columns, nil
}

// NormalizeHeader lowercases, folds diacritics, and keeps only ASCII
// letters and digits.
func NormalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = strings.TrimPrefix(s, "\ufeff")
	s = digraphs.Replace(norm.NFC.String(s))

	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Sniff picks the candidate delimiter that splits the sample into the
// most consistent column count. It returns fallback when no candidate
// is convincing.
func Sniff(content string, fallback rune) rune {
	lines := sampleLines(content)
	if len(lines) == 0 {
		return fallback
	}

	best, bestScore, bestCount := fallback, 0, 0
	for _, d := range CandidateDelimiters {
		count := countOutsideQuotes(lines[0], d)
		if count == 0 {
			continue
		}
		score := 0
		for _, line := range lines {
			if countOutsideQuotes(line, d) == count {
				score++
			}
		}
		if score*2 <= len(lines) {
			continue
		}
		if score > bestScore || (score == bestScore && count > bestCount) {
			best, bestScore, bestCount = d, score, count
		}
	}
	return best
}

func decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func sampleLines(content string) []string {
	sample := content
	truncated := false
	if len(sample) > SniffSampleSize {
		sample = sample[:SniffSampleSize]
		truncated = true
	}

	parts := strings.Split(sample, "\n")
	if truncated && len(parts) > 1 {
		parts = parts[:len(parts)-1]
	}

	lines := make([]string, 0, sniffMaxLines)
	for _, p := range parts {
		p = strings.TrimRight(p, "\r")
		if strings.TrimSpace(p) == "" {
			continue
		}
		lines = append(lines, p)
		if len(lines) == sniffMaxLines {
			break
		}
	}
	return lines
}

func countOutsideQuotes(line string, delimiter rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == delimiter && !quoted:
			n++
		}
	}
	return n
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
