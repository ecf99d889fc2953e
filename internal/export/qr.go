package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"event-checkin/internal/model"

	"github.com/gosimple/slug"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	QRSize         = 512
	labelBandSize  = 64
	labelLineSpace = 18
)

// QRPNG renders the guest's payload as a PNG.
func QRPNG(payload model.QRPayload, size int) ([]byte, error) {
	if size <= 0 {
		size = QRSize
	}
	return qrcode.Encode(payload.String(), qrcode.Medium, size)
}

// AnnotatedQRPNG renders the QR with the guest's name and code printed underneath.
func AnnotatedQRPNG(guest *model.Guest) ([]byte, error) {
	code, err := qrcode.New(guest.QRPayload().String(), qrcode.Medium)
	if err != nil {
		return nil, err
	}
	qr := code.Image(QRSize)

	canvas := image.NewRGBA(image.Rect(0, 0, QRSize, QRSize+labelBandSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, qr.Bounds(), qr, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	lines := []string{truncate(guest.Name, QRSize/7-2), guest.UniqueCode}
	for i, line := range lines {
		d := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(color.Black),
			Face: face,
		}
		width := d.MeasureString(line).Round()
		d.Dot = fixed.P((QRSize-width)/2, QRSize+labelLineSpace*(i+1))
		d.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InfoText is the plain-text card stored next to each QR image in a ZIP bundle.
func InfoText(event *model.Event, guest *model.Guest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event.Title)
	fmt.Fprintf(&b, "Date: %s\n", event.StartsAt.Format("2006-01-02 15:04"))
	if event.Venue != nil {
		fmt.Fprintf(&b, "Venue: %s\n", *event.Venue)
	}
	fmt.Fprintf(&b, "Guest: %s\n", guest.Name)
	fmt.Fprintf(&b, "Code: %s\n", guest.UniqueCode)
	if guest.Email != nil {
		fmt.Fprintf(&b, "Email: %s\n", *guest.Email)
	}
	if guest.Phone != nil {
		fmt.Fprintf(&b, "Phone: %s\n", *guest.Phone)
	}
	if guest.SeatingArea != nil {
		fmt.Fprintf(&b, "Seating: %s\n", *guest.SeatingArea)
	}
	if guest.CuisineChoice != nil {
		fmt.Fprintf(&b, "Cuisine: %s\n", *guest.CuisineChoice)
	}
	return b.String()
}

// GuestFileBase is the file name stem used for a guest inside bundles.
func GuestFileBase(guest *model.Guest) string {
	name := slug.Make(guest.Name)
	if name == "" {
		name = "guest"
	}
	return name + "-" + guest.UniqueCode
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "~"
}
