package loaders

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/dyne/engine/resources"
)

type ImageLoader struct{}

// Load decodes any registered image format into RGBA8. params may be nil
// or *resources.ImageResourceParams.
func (il *ImageLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	var flip bool
	if p, ok := params.(*resources.ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read image %s", path)
	}
	if !filetype.IsImage(data) {
		return nil, errors.Errorf("%s is not an image", path)
	}

	pixels, err := DecodeRGBA(data, flip)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}

	return &resources.Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     resources.ResourceTypeImage,
		DataSize: uint64(len(data)),
		Data:     pixels,
	}, nil
}

func (il *ImageLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// DecodeRGBA decodes an encoded image into tightly packed RGBA8.
func DecodeRGBA(data []byte, flipY bool) (*resources.ImageResourceData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var rgba *image.RGBA
	if flipY {
		rgba = transform.FlipV(img)
	} else {
		rgba = clone.AsRGBA(img)
	}
	bounds := rgba.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.New("empty image")
	}

	return &resources.ImageResourceData{
		ChannelCount: 4,
		Width:        uint32(bounds.Dx()),
		Height:       uint32(bounds.Dy()),
		Pixels:       rgba.Pix,
	}, nil
}
