package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// TesseractOCR returns an OCRFunc that renders a single page to an image
// with pdftoppm and recognizes it with tesseract. Both tools must be on
// PATH; use Available to probe before enabling the fallback.
func TesseractOCR() OCRFunc {
	return func(ctx context.Context, doc []byte, page int) (string, error) {
		dir, err := os.MkdirTemp("", "docqa-ocr-*")
		if err != nil {
			return "", fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		pdfPath := filepath.Join(dir, "page.pdf")
		if err := os.WriteFile(pdfPath, doc, 0o600); err != nil {
			return "", fmt.Errorf("write temp pdf: %w", err)
		}

		// Render only the requested page, 300 DPI for recognition quality.
		imgPrefix := filepath.Join(dir, "page")
		render := exec.CommandContext(ctx, "pdftoppm",
			"-png", "-r", "300",
			"-f", strconv.Itoa(page), "-l", strconv.Itoa(page),
			"-singlefile",
			pdfPath, imgPrefix,
		)
		if out, err := render.CombinedOutput(); err != nil {
			return "", fmt.Errorf("pdftoppm page %d: %w: %s", page, err, out)
		}

		recognize := exec.CommandContext(ctx, "tesseract", imgPrefix+".png", "stdout")
		out, err := recognize.Output()
		if err != nil {
			return "", fmt.Errorf("tesseract page %d: %w", page, err)
		}
		return string(out), nil
	}
}

// Available reports whether the OCR toolchain is present on PATH.
func Available() bool {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return false
	}
	_, err := exec.LookPath("tesseract")
	return err == nil
}
