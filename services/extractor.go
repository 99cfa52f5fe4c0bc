package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"engdocs-qa-platform/internal/ai"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/utils"
)

const (
	// Structural text shorter than this (stripped) is rejected in favor
	// of vision OCR.
	defaultMinTextLength = 50
	// More CID placeholders than this with still-short residual text also
	// triggers OCR.
	maxCIDPlaceholders = 5
	// Embedded raster images below this edge length are ignored.
	minImageDimension = 100
)

// Extractor turns a document file into an ordered list of pages. PDF
// pages get a structural text+table pass with a vision-OCR substitute
// for unreadable pages; PPTX slides are walked directly from the OOXML;
// legacy PPT is converted to PDF by a headless converter first.
type Extractor struct {
	vision        *ai.VisionClient
	minTextLength int
}

func NewExtractor(vision *ai.VisionClient, minTextLength int) *Extractor {
	if minTextLength <= 0 {
		minTextLength = defaultMinTextLength
	}
	return &Extractor{vision: vision, minTextLength: minTextLength}
}

// Extract dispatches on the declared kind. It never returns zero pages
// for a file that opens.
func (e *Extractor) Extract(ctx context.Context, path, kind string) ([]models.Page, error) {
	switch kind {
	case models.KindPDF:
		return e.extractPDF(ctx, path)
	case models.KindPPTX:
		return e.extractPPTX(ctx, path)
	case models.KindPPT:
		converted, err := convertToPDF(ctx, path)
		if err != nil {
			return nil, utils.Permanent("ppt conversion failed", err)
		}
		return e.extractPDF(ctx, converted)
	default:
		return nil, utils.InvalidInput("unsupported_kind", fmt.Sprintf("unsupported document kind %q", kind))
	}
}

var cidPlaceholder = regexp.MustCompile(`\(cid:\d+\)`)

func (e *Extractor) extractPDF(ctx context.Context, path string) ([]models.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, utils.Permanent("opening PDF", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return nil, utils.Permanent("PDF has no pages", nil)
	}

	// Pull embedded raster images for all pages up front; which text path
	// runs does not affect image extraction.
	pageImages := extractPDFImages(ctx, path)

	pages := make([]models.Page, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		page := models.Page{Number: i, Method: models.MethodStructural, Images: pageImages[i]}

		text := ""
		if p := reader.Page(i); !p.V.IsNull() {
			if t, err := p.GetPlainText(nil); err == nil {
				text = t
			}
		}

		tables := detectTables(text)
		if e.structuralRejected(text) {
			// OCR substitution drops this page's tables: the OCR path
			// cannot recover structure.
			if ocrText, err := e.ocrPage(ctx, path, i); err == nil && strings.TrimSpace(ocrText) != "" {
				page.Content = ocrText
				page.Method = models.MethodVisionOCR
				pages = append(pages, page)
				continue
			} else if err != nil {
				logger.Warn("vision OCR failed, keeping structural text", "page", i, "error", err)
			}
		}

		page.Content = composePageContent(text, tables)
		page.Tables = tables
		for _, img := range page.Images {
			if caption := e.captionImage(ctx, img.Data); caption != "" {
				page.Captions = append(page.Captions, caption)
			}
		}
		pages = append(pages, page)
	}

	if allEmpty(pages) {
		// Structural library produced nothing usable; fall back to the
		// simplest raw extraction available.
		raw, err := rawPDFText(ctx, path)
		if err != nil || strings.TrimSpace(raw) == "" {
			return nil, utils.Permanent("extraction produced zero readable pages", err)
		}
		return []models.Page{{Number: 1, Content: raw, Method: models.MethodFallback}}, nil
	}
	return pages, nil
}

// structuralRejected applies the OCR-substitution rules: stripped text
// below the threshold, or heavy CID placeholder noise with the residual
// text still below threshold.
func (e *Extractor) structuralRejected(text string) bool {
	stripped := strings.TrimSpace(text)
	if len(stripped) < e.minTextLength {
		return true
	}
	if cids := cidPlaceholder.FindAllString(stripped, -1); len(cids) > maxCIDPlaceholders {
		residual := strings.TrimSpace(cidPlaceholder.ReplaceAllString(stripped, ""))
		if len(residual) < e.minTextLength {
			return true
		}
	}
	return false
}

// ocrPage renders one page to PNG with pdftoppm and transcribes it.
func (e *Extractor) ocrPage(ctx context.Context, path string, pageNum int) (string, error) {
	if e.vision == nil {
		return "", fmt.Errorf("vision client not configured")
	}
	if !hasBinary("pdftoppm") {
		return "", fmt.Errorf("pdftoppm not available")
	}

	tmpDir, err := os.MkdirTemp("", "ocr-render-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	renderCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(renderCtx, "pdftoppm", "-png", "-r", "150",
		"-f", strconv.Itoa(pageNum), "-l", strconv.Itoa(pageNum), path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %v: %s", err, string(out))
	}

	matches, _ := filepath.Glob(prefix + "*")
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image")
	}
	img, err := os.ReadFile(matches[0])
	if err != nil {
		return "", err
	}
	return e.vision.OCRPage(ctx, img)
}

// extractPDFImages dumps embedded raster images per page via pdfimages.
// Best effort: a missing binary or a broken file yields no images, not
// an error.
func extractPDFImages(ctx context.Context, path string) map[int][]models.PageImage {
	result := make(map[int][]models.PageImage)
	if !hasBinary("pdfimages") {
		return result
	}

	tmpDir, err := os.MkdirTemp("", "pdfimages-")
	if err != nil {
		return result
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "img")
	dumpCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	// -p embeds the page number in each filename: img-NNN-MMM.ext
	cmd := exec.CommandContext(dumpCtx, "pdfimages", "-j", "-p", path, prefix)
	if err := cmd.Run(); err != nil {
		return result
	}

	files, _ := filepath.Glob(prefix + "-*")
	sort.Strings(files)
	for _, file := range files {
		pageNum := pageFromImageName(filepath.Base(file))
		if pageNum < 1 {
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width < minImageDimension || cfg.Height < minImageDimension {
			continue
		}
		result[pageNum] = append(result[pageNum], models.PageImage{
			Data:   data,
			Width:  cfg.Width,
			Height: cfg.Height,
		})
	}
	return result
}

// pageFromImageName parses the NNN page field out of "img-NNN-MMM.ext".
func pageFromImageName(name string) int {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return 0
	}
	n, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0
	}
	return n
}

// rawPDFText is the last-resort extraction path: poppler's pdftotext
// over the whole file.
func rawPDFText(ctx context.Context, path string) (string, error) {
	if !hasBinary("pdftotext") {
		return "", fmt.Errorf("pdftotext not available")
	}
	extractCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// convertToPDF runs a headless office converter for legacy formats.
func convertToPDF(ctx context.Context, path string) (string, error) {
	if !hasBinary("libreoffice") {
		return "", fmt.Errorf("libreoffice not available")
	}
	outDir := filepath.Dir(path)
	convCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	cmd := exec.CommandContext(convCtx, "libreoffice", "--headless", "--convert-to", "pdf", "--outdir", outDir, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("libreoffice convert failed: %v: %s", err, string(out))
	}

	converted := strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf"
	if _, err := os.Stat(converted); err != nil {
		return "", fmt.Errorf("converted file not found: %w", err)
	}
	return converted, nil
}

// composePageContent joins narrative text with tables rendered as a
// pipe-delimited block.
func composePageContent(text string, tables []models.PageTable) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(text))
	for _, t := range tables {
		b.WriteString("\n\n")
		b.WriteString(t.Markdown)
	}
	return strings.TrimSpace(b.String())
}

func allEmpty(pages []models.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			return false
		}
	}
	return true
}

func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
