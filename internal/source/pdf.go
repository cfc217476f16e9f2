package source

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/reiness/edos-jls-chatbot/internal/normalize"
)

var disablePDFConfig sync.Once

// PDFExtractor pulls text out of PDF page content streams. Strings are mapped
// through each font's ToUnicode CMap when it has one. Composite fonts without
// one contribute no text.
type PDFExtractor struct{}

func (PDFExtractor) Extract(path string) (Document, error) {
	// pdfcpu otherwise creates a config directory under the user's home.
	disablePDFConfig.Do(api.DisableConfigDir)

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return Document{}, fmt.Errorf("count pages: %w", err)
	}

	var pages []string
	var runs []normalize.TextRun
	for nr := 1; nr <= ctx.PageCount; nr++ {
		d, _, inh, err := ctx.PageDict(nr, false)
		if err != nil {
			return Document{}, fmt.Errorf("page %d: %w", nr, err)
		}
		content, err := ctx.PageContent(d, nr)
		if errors.Is(err, model.ErrNoContent) {
			continue
		}
		if err != nil {
			return Document{}, fmt.Errorf("page %d: %w", nr, err)
		}
		lines := textLines(content, pageFonts(ctx.XRefTable, inh.Resources))
		texts := make([]string, len(lines))
		for i, l := range lines {
			texts[i] = l.Text
		}
		pages = append(pages, strings.Join(texts, "\n"))
		runs = append(runs, lines...)
	}

	return Document{Text: strings.Join(pages, "\n\n"), Runs: runs}, nil
}

// pageFonts builds a decoder for every font in a page's resources. Fonts whose
// ToUnicode entry is missing or unreadable get a decoder without a CMap.
func pageFonts(xt *model.XRefTable, res types.Dict) map[string]*fontCodec {
	o, ok := res.Find("Font")
	if !ok {
		return nil
	}
	fd, err := xt.DereferenceDict(o)
	if err != nil || fd == nil {
		return nil
	}

	fonts := make(map[string]*fontCodec, len(fd))
	for name, o := range fd {
		d, err := xt.DereferenceDict(o)
		if err != nil || d == nil {
			continue
		}
		f := &fontCodec{}
		if st := d.NameEntry("Subtype"); st != nil && *st == "Type0" {
			f.composite = true
		}
		if o, ok := d.Find("ToUnicode"); ok {
			// Some producers write /Identity-H here instead of a stream.
			if sd, _, err := xt.DereferenceStreamDict(o); err == nil && sd != nil && sd.Decode() == nil {
				f.cmap = parseToUnicode(sd.Content)
			}
		}
		fonts[name] = f
	}
	return fonts
}
