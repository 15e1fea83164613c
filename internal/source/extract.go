package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/DigestAPI/pkg/logger_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

var ErrUnsupportedType = errors.New("unsupported document type")

var logger = logger_i.NewLogger("Extraction")

// ExtractFile pulls plain text out of an uploaded file, dispatching on the
// extension. PDF pages are joined with blank lines so the chunker's best
// separator lines up with page boundaries.
func ExtractFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".docx", ".txt", ".rtf", ".odt":
		return extractDocxTxtRtf(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// SupportedExtension lets the handler reject bad uploads before writing
// anything to disk.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt", ".rtf", ".odt":
		return true
	}
	return false
}

func extractPDF(path string) (string, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file")
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// keep going with the other pages
			logger.Error("Error parsing page content", "page", i, "Error", err)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n\n"), nil
}

// extractDocxTxtRtf reads a .odt, .docx, .rtf or plaintext file and returns
// the content as a string
func extractDocxTxtRtf(path string) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("Error extracting content from doc")
		return "", fmt.Errorf("failed to extract document: %w", err)
	}
	return text, nil
}

// protectExtract guards against pdf pages whose text extraction hangs.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		logger.Error("pageExtract", "timeout")
		return "", errors.New("timeout")
	}
}
