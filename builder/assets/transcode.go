package assets

import (
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	"github.com/Kush-Singh-26/quill/builder/utils"
)

// Transcoder turns source bytes into an encoded rendition. Width and
// height are both nil or both set.
type Transcoder interface {
	Transcode(src io.Reader, width, height *int, enc Encoding) ([]byte, error)
}

// ImagingTranscoder decodes with imaging, crops to cover the requested
// box and encodes per Encoding. Animated GIFs keep their first frame.
type ImagingTranscoder struct{}

func (ImagingTranscoder) Transcode(src io.Reader, width, height *int, enc Encoding) ([]byte, error) {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if width != nil && height != nil {
		img = imaging.Fill(img, *width, *height, imaging.Center, imaging.Lanczos)
	}

	buf := utils.SharedBufferPool.Get()
	defer utils.SharedBufferPool.Put(buf)
	if err := enc.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", enc.Kind, err)
	}
	return utils.CloneBytes(buf), nil
}
