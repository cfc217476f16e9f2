package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/normalize"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(t.TempDir(), nil)
	var sde *domain.SourceDataError
	if !errors.As(err, &sde) {
		t.Fatalf("expected SourceDataError, got %v", err)
	}
	if sde.Artifact != "manifest" {
		t.Errorf("Artifact = %q", sde.Artifact)
	}
}

func TestLoadManifestMalformed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"not": "a list"}`)
	_, err := LoadManifest(dir, nil)
	var sde *domain.SourceDataError
	if !errors.As(err, &sde) {
		t.Fatalf("expected SourceDataError, got %v", err)
	}
}

func TestLoadManifestFiltersEntries(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[
		{"title": "Leave Policy", "section": "HR", "local_filename": "leave.pdf"},
		{"title": "No file"},
		{"title": "Escape", "local_filename": "../outside.pdf"},
		{"title": "Lock file", "local_filename": "~$leave.docx"},
		{"title": "Hidden", "local_filename": "drafts/.draft.md"},
		{"title": "Leave Policy copy", "local_filename": "leave.pdf"},
		{"local_filename": "guides/expenses.md", "author": "Finance"}
	]`)

	entries, err := LoadManifest(dir, []string{"**/.*", "**/~$*"})
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}

	if entries[0].Title != "Leave Policy" || entries[0].Path != filepath.Join(dir, "leave.pdf") {
		t.Errorf("first entry = %+v", entries[0])
	}
	second := entries[1]
	if second.Title != domain.DefaultTitle || second.Section != domain.DefaultSection || second.Date != domain.DefaultDate {
		t.Errorf("defaults not applied: %+v", second)
	}
	if second.Author != "Finance" {
		t.Errorf("Author = %q", second.Author)
	}
	if second.Path != filepath.Join(dir, "guides", "expenses.md") {
		t.Errorf("Path = %q", second.Path)
	}
}

func TestExtractorFor(t *testing.T) {
	for _, name := range []string{"a.pdf", "b.PDF", "c.md", "d.markdown", "e.txt"} {
		if _, err := ExtractorFor(name); err != nil {
			t.Errorf("ExtractorFor(%q): %v", name, err)
		}
	}
	if _, err := ExtractorFor("sheet.xlsx"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestTextExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("EXPENSE POLICY\nKeep receipts.\xff"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(doc.Text, "EXPENSE POLICY\nKeep receipts.") {
		t.Errorf("Text = %q", doc.Text)
	}
	if got := doc.DetectHeadings(); len(got) != 1 || got[0] != "EXPENSE POLICY" {
		t.Errorf("DetectHeadings = %v", got)
	}
}

func TestDetectHeadingsPrefersExplicit(t *testing.T) {
	doc := Document{
		Text:     "INTRO\nbody",
		Runs:     []normalize.TextRun{{Text: "Big", Size: 20}, {Text: "small", Size: 10}},
		Headings: []string{"Intro"},
	}
	if got := doc.DetectHeadings(); len(got) != 1 || got[0] != "Intro" {
		t.Errorf("DetectHeadings = %v", got)
	}
	doc.Headings = nil
	if got := doc.DetectHeadings(); len(got) != 1 || got[0] != "Big" {
		t.Errorf("DetectHeadings with runs = %v", got)
	}
}

func TestMarkdownDocument(t *testing.T) {
	src := "# Leave Policy\n\n" +
		"Employees *must* submit form `HR-12`.\n\n" +
		"Approval Steps\n--------------\n\n" +
		"- Manager approves\n- HR records\n\n" +
		"```\ncode line\n```\n\n" +
		"<div>ignored</div>\n"

	doc := markdownDocument([]byte(src))

	want := []string{"Leave Policy", "Approval Steps"}
	if len(doc.Headings) != len(want) {
		t.Fatalf("Headings = %v, want %v", doc.Headings, want)
	}
	for i := range want {
		if doc.Headings[i] != want[i] {
			t.Errorf("heading[%d] = %q, want %q", i, doc.Headings[i], want[i])
		}
	}
	for _, s := range []string{"Leave Policy\n", "Employees must submit form HR-12.", "Manager approves", "code line"} {
		if !strings.Contains(doc.Text, s) {
			t.Errorf("text missing %q:\n%s", s, doc.Text)
		}
	}
	if strings.Contains(doc.Text, "ignored") {
		t.Errorf("raw HTML leaked into text:\n%s", doc.Text)
	}
}

func TestMarkdownExtractorReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(path, []byte("## Scope\n\nApplies to all staff."), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Headings) != 1 || doc.Headings[0] != "Scope" {
		t.Errorf("Headings = %v", doc.Headings)
	}
}

func TestTextLines(t *testing.T) {
	content := `% page one
BT /F1 18 Tf 72 700 Td (Leave Policy) Tj ET
BT /F1 10 Tf 72 680 Td [(Sub)20(mit)-300(form)] TJ ( HR-12) Tj
T* (to your manager.) Tj ET`

	lines := textLines([]byte(content), nil)
	want := []normalize.TextRun{
		{Text: "Leave Policy", Size: 18},
		{Text: "Submit form HR-12", Size: 10},
		{Text: "to your manager.", Size: 10},
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %+v, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line[%d] = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestTextLinesStrings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"escapes", `BT /F1 10 Tf (A \(nested\) \101 string) Tj ET`, "A (nested) A string"},
		{"balanced parens", `BT /F1 10 Tf (f(x) here) Tj ET`, "f(x) here"},
		{"hex", `BT /F1 10 Tf <48522D3132> Tj ET`, "HR-12"},
		{"utf16", `BT /F1 10 Tf <FEFF00DC0062> Tj ET`, "Üb"},
		{"quote operator", `BT /F1 10 Tf (first) Tj (second) ' ET`, "second"},
		{"inline image", "BI /W 1 /H 1 ID \x00\xffEI\x01 EI BT /F1 10 Tf (after) Tj ET", "after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := textLines([]byte(tt.content), nil)
			if len(lines) == 0 {
				t.Fatal("no lines")
			}
			if got := lines[len(lines)-1].Text; got != tt.want {
				t.Errorf("last line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextLinesTmScale(t *testing.T) {
	content := `BT /F1 1 Tf 14 0 0 14 72 500 Tm (Big) Tj 1 0 0 1 72 480 Tm (small) Tj ET`
	lines := textLines([]byte(content), nil)
	if len(lines) != 2 {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].Size != 14 || lines[1].Size != 1 {
		t.Errorf("sizes = %v, %v", lines[0].Size, lines[1].Size)
	}
}

// writeTestPDF writes a single-page PDF whose page draws content with font
// resource F1. fonts, when given, become objects 5 onward with F1 at 5;
// otherwise F1 is Helvetica.
func writeTestPDF(t *testing.T, path, content string, fonts ...string) {
	t.Helper()
	if len(fonts) == 0 {
		fonts = []string{"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"}
	}
	objs := append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		pdfStream(content),
	}, fonts...)
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func pdfStream(body string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(body), body)
}

func TestPDFExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leave.pdf")
	writeTestPDF(t, path, "BT /F1 18 Tf 72 700 Td (Leave Policy) Tj ET\nBT /F1 10 Tf 72 680 Td (Submit form HR-12.) Tj ET")

	doc, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "Leave Policy\nSubmit form HR-12." {
		t.Errorf("Text = %q", doc.Text)
	}
	if got := doc.DetectHeadings(); len(got) != 1 || got[0] != "Leave Policy" {
		t.Errorf("DetectHeadings = %v", got)
	}
}

func TestPDFExtractorRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(path); err == nil {
		t.Error("expected error for invalid PDF")
	}
}

// identityCMap maps two-byte glyph IDs to the text "Leave Pool file".
const identityCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
8 beginbfchar
<0003> <0020>
<002F> <004C>
<0048> <0065>
<0044> <0061>
<0059> <0076>
<0030> <00660069>
<0021> <006C>
<0031> <D83DDCC4>
endbfchar
2 beginbfrange
<0010> <0012> <0050>
<0050> <0051> [<006F> <006C>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestParseToUnicode(t *testing.T) {
	cm := parseToUnicode([]byte(identityCMap))
	if cm == nil {
		t.Fatal("parseToUnicode returned nil")
	}
	if len(cm.spaces) != 1 || cm.spaces[0].n != 2 {
		t.Errorf("codespaces = %+v", cm.spaces)
	}

	tests := []struct {
		code uint32
		want string
		ok   bool
	}{
		{0x002F, "L", true},
		{0x0030, "fi", true},
		{0x0031, "\U0001F4C4", true},
		{0x0010, "P", true},
		{0x0012, "R", true},
		{0x0051, "l", true},
		{0x0013, "", false},
		{0x0100, "", false},
	}
	for _, tt := range tests {
		got, ok := cm.lookup(tt.code)
		if got != tt.want || ok != tt.ok {
			t.Errorf("lookup(%04X) = %q, %v; want %q, %v", tt.code, got, ok, tt.want, tt.ok)
		}
	}

	if cm := parseToUnicode([]byte("1 begincodespacerange <00> <FF> endcodespacerange")); cm != nil {
		t.Errorf("CMap without mappings = %+v, want nil", cm)
	}
}

func TestTextLinesToUnicode(t *testing.T) {
	fonts := map[string]*fontCodec{
		"F1": {composite: true, cmap: parseToUnicode([]byte(identityCMap))},
	}
	content := `BT /F1 12 Tf 72 700 Td <002F0048004400590048> Tj /F2 12 Tf ( notes) Tj ET
BT /F1 10 Tf 72 680 Td [<0010005000500051> -250 <00300021 0048>] TJ ET`

	lines := textLines([]byte(content), fonts)
	want := []string{"Leave notes", "Pool file"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %+v", lines)
	}
	for i := range want {
		if lines[i].Text != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, lines[i].Text, want[i])
		}
	}
}

func TestTextLinesCompositeFontWithoutCMap(t *testing.T) {
	fonts := map[string]*fontCodec{"F1": {composite: true}}
	if lines := textLines([]byte("BT /F1 12 Tf <002F0048004400590048> Tj ET"), fonts); len(lines) != 0 {
		t.Errorf("lines = %+v, want none", lines)
	}
}

func TestSimpleFontCMap(t *testing.T) {
	cm := parseToUnicode([]byte("1 begincodespacerange <00> <FF> endcodespacerange 1 beginbfchar <41> <00C4> endbfchar"))
	f := &fontCodec{cmap: cm}
	if got := f.decode([]byte("AB\x01")); got != "ÄB" {
		t.Errorf("decode = %q, want %q", got, "ÄB")
	}
}

func TestPDFExtractorCIDFont(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdocs.pdf")
	content := "BT /F1 18 Tf 72 700 Td <002F0048004400590048> Tj ET\nBT /F1 10 Tf 72 680 Td <0010005000500051000300300021 0048> Tj ET"
	writeTestPDF(t, path, content,
		"<< /Type /Font /Subtype /Type0 /BaseFont /ABCDEF+Arial /Encoding /Identity-H /DescendantFonts [6 0 R] /ToUnicode 7 0 R >>",
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ABCDEF+Arial /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor 8 0 R /CIDToGIDMap /Identity >>",
		pdfStream(identityCMap),
		"<< /Type /FontDescriptor /FontName /ABCDEF+Arial /Flags 32 /FontBBox [0 0 1000 1000] /ItalicAngle 0 /Ascent 900 /Descent -200 /CapHeight 700 /StemV 80 >>",
	)

	doc, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Text != "Leave\nPool file" {
		t.Errorf("Text = %q", doc.Text)
	}
	if len(doc.Runs) != 2 || doc.Runs[0].Size != 18 || doc.Runs[1].Size != 10 {
		t.Errorf("Runs = %+v", doc.Runs)
	}
}
