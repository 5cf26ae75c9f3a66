package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/memberpass/internal/model"
)

func collect(t *testing.T, sheet *Sheet) []model.RawRow {
	t.Helper()
	var rows []model.RawRow
	for row := range sheet.Rows() {
		rows = append(rows, row)
	}
	require.NoError(t, sheet.Err())
	return rows
}

func TestParse_GermanSemicolonHeader(t *testing.T) {
	data := []byte("E-Mail;Vorname;Nachname;Beitritt;Rolle\na@b.de;Ana;Schmidt;03.04.2019;Mitglied\n")

	sheet, err := Parse(data, ',')
	require.NoError(t, err)
	assert.Equal(t, ';', sheet.Delimiter)

	rows := collect(t, sheet)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "a@b.de", rows[0].Get(model.FieldEmail))
	assert.Equal(t, "Ana", rows[0].Get(model.FieldFirstName))
	assert.Equal(t, "Schmidt", rows[0].Get(model.FieldLastName))
	assert.Equal(t, "03.04.2019", rows[0].Get(model.FieldJoinDate))
	assert.Equal(t, "Mitglied", rows[0].Get(model.FieldRole))
}

func TestParse_ByteOrderMarkAndComma(t *testing.T) {
	data := []byte("\xef\xbb\xbfEmail,First Name,Last_Name\nbob@example.org,Bob,Builder\n")

	sheet, err := Parse(data, ';')
	require.NoError(t, err)
	assert.Equal(t, ',', sheet.Delimiter)
	assert.Equal(t, "Email", sheet.Headers[0])

	rows := collect(t, sheet)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob@example.org", rows[0].Get(model.FieldEmail))
	assert.Equal(t, "Bob", rows[0].Get(model.FieldFirstName))
	assert.Equal(t, "", rows[0].Get(model.FieldRole))
}

func TestParse_MissingMandatoryField(t *testing.T) {
	data := []byte("E-Mail;Vorname;Rolle\na@b.de;Ana;Mitglied\n")

	_, err := Parse(data, ';')
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingField))

	var ingestErr *model.IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, []string{model.FieldLastName}, ingestErr.Missing)
	assert.Equal(t, []string{"E-Mail", "Vorname", "Rolle"}, ingestErr.Seen)
	assert.Contains(t, err.Error(), "lastname")
	assert.Contains(t, err.Error(), "Vorname")
}

func TestParse_EmptyInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "no bytes", data: nil},
		{name: "only newlines", data: []byte("\n\r\n\n")},
		{name: "only byte order mark", data: []byte("\xef\xbb\xbf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data, ';')
			assert.ErrorIs(t, err, model.ErrEmptyInput)
		})
	}
}

func TestParse_BlankRowsDropped(t *testing.T) {
	data := []byte("email;vorname;nachname\n\n;;\na@b.de;Ana;Schmidt\n  ; ;  \nc@d.de;Carl;Meier\n")

	sheet, err := Parse(data, ';')
	require.NoError(t, err)

	rows := collect(t, sheet)
	require.Len(t, rows, 2)
	assert.Equal(t, 4, rows[0].Line)
	assert.Equal(t, 6, rows[1].Line)
}

func TestParse_ShortRowsPadded(t *testing.T) {
	data := []byte("email;vorname;nachname;rolle\na@b.de;Ana\n")

	sheet, err := Parse(data, ';')
	require.NoError(t, err)

	rows := collect(t, sheet)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0].Get(model.FieldFirstName))
	assert.Equal(t, "", rows[0].Get(model.FieldLastName))
	assert.Equal(t, "", rows[0].Get(model.FieldRole))
}

func TestParse_QuotedDelimiter(t *testing.T) {
	data := []byte("email;vorname;nachname\na@b.de;Ana;\"Schmidt; Jr.\"\n")

	sheet, err := Parse(data, ',')
	require.NoError(t, err)

	rows := collect(t, sheet)
	require.Len(t, rows, 1)
	assert.Equal(t, "Schmidt; Jr.", rows[0].Get(model.FieldLastName))
}

func TestParse_Windows1252(t *testing.T) {
	data := []byte("E-Mail;Vorname;Nachname\nj@b.de;J\xfcrgen;M\xfcller\n")

	sheet, err := Parse(data, ';')
	require.NoError(t, err)

	rows := collect(t, sheet)
	require.Len(t, rows, 1)
	assert.Equal(t, "Jürgen", rows[0].Get(model.FieldFirstName))
	assert.Equal(t, "Müller", rows[0].Get(model.FieldLastName))
}

func TestParse_StopEarly(t *testing.T) {
	data := []byte("email;vorname;nachname\na@b.de;A;A\nb@b.de;B;B\nc@b.de;C;C\n")

	sheet, err := Parse(data, ';')
	require.NoError(t, err)

	var seen int
	for range sheet.Rows() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
	assert.NoError(t, sheet.Err())
}

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    map[string]int
	}{
		{
			name:    "aliases in any order",
			headers: []string{"Nachname", "Vorname", "Mail"},
			want: map[string]int{
				model.FieldLastName:  0,
				model.FieldFirstName: 1,
				model.FieldEmail:     2,
			},
		},
		{
			name:    "earlier alias wins over later",
			headers: []string{"Mail", "E-Mail", "First", "Firstname", "Last", "Lastname"},
			want: map[string]int{
				model.FieldEmail:     1,
				model.FieldFirstName: 3,
				model.FieldLastName:  5,
			},
		},
		{
			name:    "first duplicate header wins",
			headers: []string{"email", "vorname", "nachname", "EMAIL"},
			want: map[string]int{
				model.FieldEmail:     0,
				model.FieldFirstName: 1,
				model.FieldLastName:  2,
			},
		},
		{
			name:    "optional fields resolved",
			headers: []string{"Emailadresse", "First_Name", "Last Name", "Eintrittsdatum", "Funktion"},
			want: map[string]int{
				model.FieldEmail:     0,
				model.FieldFirstName: 1,
				model.FieldLastName:  2,
				model.FieldJoinDate:  3,
				model.FieldRole:      4,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveColumns(tt.headers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "E-Mail", want: "email"},
		{in: "  Eintrittsdatum ", want: "eintrittsdatum"},
		{in: "First_Name", want: "firstname"},
		{in: "Straße", want: "strasse"},
		{in: "Größe", want: "groesse"},
		{in: "Übung", want: "uebung"},
		{in: "Élan", want: "elan"},
		{in: "Fonction désirée", want: "fonctiondesiree"},
		{in: "\ufeffEmail", want: "email"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeader(tt.in))
		})
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		fallback rune
		want     rune
	}{
		{name: "semicolon", content: "a;b;c\n1;2;3\n", fallback: ',', want: ';'},
		{name: "comma", content: "a,b,c\n1,2,3\n", fallback: ';', want: ','},
		{name: "tab", content: "a\tb\tc\n1\t2\t3\n", fallback: ';', want: '\t'},
		{name: "pipe", content: "a|b|c\n1|2|3\n", fallback: ';', want: '|'},
		{name: "quoted commas ignored", content: "a;b\n\"x, y, z\";2\n", fallback: '|', want: ';'},
		{name: "single column falls back", content: "email\na@b.de\n", fallback: ';', want: ';'},
		{name: "empty falls back", content: "", fallback: '|', want: '|'},
		{name: "inconsistent falls back", content: "a,b\n1,2,3,4\n1,2,3\n1\n", fallback: ';', want: ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.content, tt.fallback))
		})
	}
}
