package storage

import (
	"bytes"
	"fmt"
	"io"
	"time"

	apperrors "event-checkin/pkg/app_errors"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const (
	MaxPhotoBytes    = 10 << 20
	photoJPEGQuality = 80
)

var allowedPhotoTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// CompressPhoto sniffs the upload, fixes EXIF orientation, fits it within maxEdge and
// re-encodes it as JPEG.
func CompressPhoto(r io.Reader, maxEdge int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPhotoBytes {
		return nil, fmt.Errorf("%w: photo larger than %d bytes", apperrors.ErrInvalidInput, MaxPhotoBytes)
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedPhotoTypes...) {
		return nil, fmt.Errorf("%w: unsupported photo type %s", apperrors.ErrInvalidInput, mtype.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode photo: %v", apperrors.ErrInvalidInput, err)
	}

	if maxEdge > 0 {
		b := img.Bounds()
		if b.Dx() > maxEdge || b.Dy() > maxEdge {
			img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(photoJPEGQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func PhotoKey(eventID, guestID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("checkins/%s/%s-%d.jpg", eventID, guestID, at.Unix())
}

func QRKey(eventID, guestID uuid.UUID) string {
	return fmt.Sprintf("qr/%s/%s.png", eventID, guestID)
}
