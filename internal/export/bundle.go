package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"event-checkin/internal/model"

	"github.com/go-pdf/fpdf"
)

const (
	pdfQRSizeMM = 110.0
)

// WriteBundlePDF writes one A4 page per guest: the QR centred, name and code below.
func WriteBundlePDF(w io.Writer, event *model.Event, guests []*model.Guest) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(event.Title+" QR codes", true)
	pdf.SetAutoPageBreak(false, 0)
	pageW, pageH := pdf.GetPageSize()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, g := range guests {
		png, err := QRPNG(g.QRPayload(), QRSize)
		if err != nil {
			return fmt.Errorf("qr for guest %s: %w", g.ID, err)
		}

		pdf.AddPage()

		pdf.SetFont("Helvetica", "", 12)
		pdf.SetY(20)
		pdf.CellFormat(0, 8, tr(event.Title), "", 1, "C", false, 0, "")

		name := fmt.Sprintf("qr-%d", i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		x := (pageW - pdfQRSizeMM) / 2
		y := (pageH-pdfQRSizeMM)/2 - 20
		pdf.ImageOptions(name, x, y, pdfQRSizeMM, pdfQRSizeMM, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		pdf.SetY(y + pdfQRSizeMM + 8)
		pdf.SetFont("Helvetica", "B", 20)
		pdf.CellFormat(0, 10, tr(g.Name), "", 1, "C", false, 0, "")
		pdf.SetFont("Courier", "", 14)
		pdf.CellFormat(0, 8, g.UniqueCode, "", 1, "C", false, 0, "")

		if pdf.Err() {
			return pdf.Error()
		}
	}

	return pdf.Output(w)
}

// WriteBundleZip streams one annotated PNG and one info text per guest. Entries are
// produced one guest at a time so only a single image is held in memory.
func WriteBundleZip(w io.Writer, event *model.Event, guests []*model.Guest) error {
	zw := zip.NewWriter(w)
	now := time.Now()

	for _, g := range guests {
		png, err := AnnotatedQRPNG(g)
		if err != nil {
			return fmt.Errorf("qr for guest %s: %w", g.ID, err)
		}
		base := GuestFileBase(g)

		if err := writeZipEntry(zw, base+".png", png, now, zip.Store); err != nil {
			return err
		}
		if err := writeZipEntry(zw, base+".txt", []byte(InfoText(event, g)), now, zip.Deflate); err != nil {
			return err
		}
	}

	return zw.Close()
}

func writeZipEntry(zw *zip.Writer, name string, body []byte, modified time.Time, method uint16) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: modified,
	})
	if err != nil {
		return err
	}
	_, err = f.Write(body)
	return err
}
