package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

// extractPPTX walks the OOXML package directly: one page per slide, in
// slide-number order. Slide text, tables, speaker notes, and embedded
// picture captions all land in the same page so the chunker sees the
// slide as a unit.
func (e *Extractor) extractPPTX(ctx context.Context, path string) ([]models.Page, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, utils.Permanent("opening PPTX", err)
	}
	defer r.Close()

	fileIndex := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileIndex[f.Name] = f
	}

	// ppt/slides/slide1.xml, slide2.xml, ...
	slideFiles := make(map[int]*zip.File)
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			if num := slideNumber(f.Name); num > 0 {
				slideFiles[num] = f
			}
		}
	}
	nums := make([]int, 0, len(slideFiles))
	for n := range slideFiles {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	if len(nums) == 0 {
		return nil, utils.Permanent("PPTX has no slides", nil)
	}

	pages := make([]models.Page, 0, len(nums))
	for _, num := range nums {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := readZipFile(slideFiles[num])
		if err != nil {
			logger.Warn("skipping unreadable slide", "slide", num, "error", err)
			continue
		}

		text, tables := parseSlideXML(data)
		notes := slideNotes(fileIndex, num)

		images := slideImages(data, fileIndex, num)
		var captions []string
		for _, img := range images {
			if caption := e.captionImage(ctx, img.Data); caption != "" {
				captions = append(captions, caption)
			}
		}

		pages = append(pages, models.Page{
			Number:   num,
			Content:  composeSlideContent(text, tables, notes, captions),
			Tables:   tables,
			Images:   images,
			Captions: captions,
			Method:   models.MethodStructural,
		})
	}

	if allEmpty(pages) {
		return nil, utils.Permanent("extraction produced zero readable slides", nil)
	}
	return pages, nil
}

// composeSlideContent joins slide text, rendered tables, speaker
// notes, and image captions into the single block the chunker sees.
// Captions also travel separately on the page for per-image chunks.
func composeSlideContent(text string, tables []models.PageTable, notes string, captions []string) string {
	var b strings.Builder
	b.WriteString(text)
	for _, t := range tables {
		b.WriteString("\n\n")
		b.WriteString(t.Markdown)
	}
	if notes != "" {
		b.WriteString("\n\n[Speaker notes]\n")
		b.WriteString(notes)
	}
	if len(captions) > 0 {
		b.WriteString("\n\n--- Image Content ---\n")
		b.WriteString(strings.Join(captions, "\n"))
	}
	return strings.TrimSpace(b.String())
}

func (e *Extractor) captionImage(ctx context.Context, data []byte) string {
	if e.vision == nil {
		return ""
	}
	caption, err := e.vision.Caption(ctx, data)
	if err != nil {
		logger.Warn("image caption failed", "error", err)
		return ""
	}
	return strings.TrimSpace(caption)
}

// Simplified slide XML: shapes carry paragraphs of runs, graphic frames
// carry a:tbl tables.
type pptxSlide struct {
	CSld struct {
		SpTree struct {
			SPs    []pptxShape        `xml:"sp"`
			Frames []pptxGraphicFrame `xml:"graphicFrame"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxShape struct {
	TxBody *pptxTxBody `xml:"txBody"`
}

type pptxTxBody struct {
	Paras []pptxPara `xml:"p"`
}

type pptxPara struct {
	Runs []pptxRun `xml:"r"`
}

type pptxRun struct {
	Text string `xml:"t"`
}

type pptxGraphicFrame struct {
	Graphic struct {
		GraphicData struct {
			Table *pptxTable `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type pptxTable struct {
	Rows []pptxTableRow `xml:"tr"`
}

type pptxTableRow struct {
	Cells []pptxTableCell `xml:"tc"`
}

type pptxTableCell struct {
	TxBody pptxTxBody `xml:"txBody"`
}

func parseSlideXML(data []byte) (string, []models.PageTable) {
	var slide pptxSlide
	if err := xml.Unmarshal(data, &slide); err != nil {
		return "", nil
	}

	var parts []string
	for _, sp := range slide.CSld.SpTree.SPs {
		if sp.TxBody == nil {
			continue
		}
		for _, line := range paraLines(*sp.TxBody) {
			parts = append(parts, line)
		}
	}

	var tables []models.PageTable
	for _, frame := range slide.CSld.SpTree.Frames {
		tbl := frame.Graphic.GraphicData.Table
		if tbl == nil || len(tbl.Rows) == 0 {
			continue
		}
		rows := make([][]string, 0, len(tbl.Rows))
		for _, tr := range tbl.Rows {
			cells := make([]string, 0, len(tr.Cells))
			for _, tc := range tr.Cells {
				cells = append(cells, strings.Join(paraLines(tc.TxBody), " "))
			}
			rows = append(rows, cells)
		}
		if t, ok := renderTable(rows); ok {
			tables = append(tables, t)
		}
	}

	return strings.Join(parts, "\n"), tables
}

func paraLines(body pptxTxBody) []string {
	var lines []string
	for _, para := range body.Paras {
		var line strings.Builder
		for _, run := range para.Runs {
			line.WriteString(run.Text)
		}
		if t := strings.TrimSpace(line.String()); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// slideNotes reads ppt/notesSlides/notesSlideN.xml. Notes share the
// slide XML shape.
func slideNotes(fileIndex map[string]*zip.File, slideNum int) string {
	f := fileIndex[fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", slideNum)]
	if f == nil {
		return ""
	}
	data, err := readZipFile(f)
	if err != nil {
		return ""
	}
	text, _ := parseSlideXML(data)
	// Notes bodies repeat the slide number as a lone placeholder run.
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if line == fmt.Sprintf("%d", slideNum) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// slideImages resolves a:blip r:embed references through the slide's
// .rels file to the media parts in the package.
func slideImages(slideXML []byte, fileIndex map[string]*zip.File, slideNum int) []models.PageImage {
	rels := parseRels(fileIndex, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", slideNum))
	if rels == nil {
		return nil
	}

	decoder := xml.NewDecoder(bytes.NewReader(slideXML))
	var images []models.PageImage
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "blip" {
			continue
		}

		var embedID string
		for _, attr := range se.Attr {
			if attr.Name.Local == "embed" {
				embedID = attr.Value
				break
			}
		}
		target, ok := rels[embedID]
		if embedID == "" || !ok {
			continue
		}

		// Targets are relative to ppt/slides/.
		mediaPath := strings.ReplaceAll(filepath.Clean("ppt/slides/"+target), "\\", "/")
		zf := fileIndex[mediaPath]
		if zf == nil {
			continue
		}
		data, err := readZipFile(zf)
		if err != nil {
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width < minImageDimension || cfg.Height < minImageDimension {
			continue
		}
		images = append(images, models.PageImage{Data: data, Width: cfg.Width, Height: cfg.Height})
	}
	return images
}

type ooxmlRelationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func parseRels(fileIndex map[string]*zip.File, relsPath string) map[string]string {
	f := fileIndex[relsPath]
	if f == nil {
		return nil
	}
	data, err := readZipFile(f)
	if err != nil {
		return nil
	}
	var rels ooxmlRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil
	}
	result := make(map[string]string, len(rels.Rels))
	for _, rel := range rels.Rels {
		result[rel.ID] = rel.Target
	}
	return result
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func slideNumber(name string) int {
	name = strings.TrimPrefix(name, "ppt/slides/slide")
	name = strings.TrimSuffix(name, ".xml")
	var num int
	fmt.Sscanf(name, "%d", &num)
	return num
}
