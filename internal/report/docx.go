package report

import (
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/ctypes"
)

const (
	fontName     = "Times New Roman"
	bodyFontSize = 12
	headFontSize = 14
)

// WriteDocx renders the compiled report as a Word document at outputPath.
func WriteDocx(outputPath string, entries []Entry, opts Options) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	for i, entry := range entries {
		if i > 0 {
			doc.AddParagraph("")
		}
		addHeading(doc.AddParagraph(""), entry.Title)
		addBody(doc.AddParagraph(""), fmt.Sprintf("Fecha: %s", entry.Date.Format(dateLayout)))
		addBody(doc.AddParagraph(""), fmt.Sprintf("Video: %s", entry.Name))
		doc.AddParagraph("")

		addBold(doc.AddParagraph(""), "Descripción")
		addParagraphs(doc, entry.Summary)

		if opts.IncludeTranscripts {
			doc.AddParagraph("")
			addBold(doc.AddParagraph(""), "Transcripción Completa")
			addParagraphs(doc, entry.Transcript)
		}
	}

	if err := doc.SaveTo(outputPath); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func addParagraphs(doc *docx.RootDoc, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		addBody(doc.AddParagraph(""), line)
	}
}

func addHeading(p *docx.Paragraph, text string) {
	p.AddText(text).Size(headFontSize).Color("000000").Bold(true)
	setRunFont(p, fontName)
}

func addBold(p *docx.Paragraph, text string) {
	p.AddText(text).Size(bodyFontSize).Color("000000").Bold(true)
	setRunFont(p, fontName)
}

func addBody(p *docx.Paragraph, text string) {
	p.AddText(text).Size(bodyFontSize).Color("000000")
	setRunFont(p, fontName)
}

// setRunFont sets the font on the most recently added run. godocx exposes no
// fluent font setter on docx.Run, so the w:rFonts element is set through the
// underlying complex type.
func setRunFont(p *docx.Paragraph, name string) {
	children := p.GetCT().Children
	if len(children) == 0 {
		return
	}
	run := children[len(children)-1].Run
	if run == nil {
		return
	}
	if run.Property == nil {
		run.Property = &ctypes.RunProperty{}
	}
	run.Property.Fonts = &ctypes.RunFonts{Ascii: name, HAnsi: name, EastAsia: name, CS: name}
}
