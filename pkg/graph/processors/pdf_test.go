package processors

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one page per entry of pages. Each non-empty
// entry is drawn as a single Helvetica text run.
func buildPDF(pages []string) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0)

	object := func(body string) int {
		offsets = append(offsets, buf.Len())
		n := len(offsets)
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
		return n
	}

	buf.WriteString("%PDF-1.4\n")

	fontObj := 3 + 2*len(pages)
	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}

	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	for i, text := range pages {
		object(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontObj, 4+2*i))

		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

func TestPaginate(t *testing.T) {
	pages := Paginate([]string{"abc", "", "héllo", "x"})

	require.Len(t, pages, 4)
	for i, p := range pages {
		assert.Equal(t, i, p.PageNumber)
	}
	assert.Equal(t, 0, pages[0].CharOffset)
	assert.Equal(t, 3, pages[1].CharOffset)
	assert.Equal(t, 3, pages[2].CharOffset)
	// Offsets count characters, not bytes
	assert.Equal(t, 8, pages[3].CharOffset)

	assert.Empty(t, Paginate(nil))
}

func TestParsePDFReader(t *testing.T) {
	data := buildPDF([]string{"Hello", "World", ""})

	pages, err := ParsePDFReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	require.Len(t, pages, 3)
	assert.Contains(t, pages[0].Text, "Hello")
	assert.Contains(t, pages[1].Text, "World")
	assert.Empty(t, strings.TrimSpace(pages[2].Text))

	assert.Equal(t, 0, pages[0].CharOffset)
	for k := 1; k < len(pages); k++ {
		assert.Equal(t, k, pages[k].PageNumber)
		assert.Equal(t, pages[k-1].CharOffset+utf8.RuneCountInString(pages[k-1].Text), pages[k].CharOffset)
	}
}

func TestParsePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF([]string{"Ada Lovelace"}), 0644))

	pages, err := ParsePDF(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Ada Lovelace")
}

func TestParsePDFErrors(t *testing.T) {
	_, err := ParsePDF(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	garbage := bytes.Repeat([]byte("not a pdf "), 20)
	_, err = ParsePDFReader(bytes.NewReader(garbage), int64(len(garbage)))
	assert.Error(t, err)
}

func TestPDFProcessor(t *testing.T) {
	p := NewPDFProcessor()
	assert.Equal(t, []string{"application/pdf"}, p.SupportedTypes())

	pages, err := p.ExtractPages(context.Background(), buildPDF([]string{"One", "Two"}))
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}
