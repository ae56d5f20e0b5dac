package opencl

import (
	"image"
	"runtime"
	"unsafe"

	"golang.org/x/image/draw"

	"github.com/gogpu/opencl/driver"
)

// Image is a 1D, 2D or 3D image memory object.
type Image struct {
	memObject
	format driver.ImageFormat
	desc   driver.ImageDesc
}

// Format returns the image's channel order and type.
func (i *Image) Format() driver.ImageFormat { return i.format }

// Bounds returns the image's width and height as a rectangle at the
// origin.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.desc.Width, max(i.desc.Height, 1))
}

// CreateImage allocates an image. When host is non-nil the pixels it
// points to are copied in and MemCopyHostPtr is added to flags; host must
// hold desc.RowPitch (or tightly packed) rows.
func (c *Context) CreateImage(flags driver.MemFlags, format driver.ImageFormat, desc driver.ImageDesc, host []byte, id any) (*Image, error) {
	h, err := c.live("create image")
	if err != nil {
		return nil, err
	}

	var (
		ptr    unsafe.Pointer
		pinner runtime.Pinner
	)
	if len(host) > 0 {
		ptr = unsafe.Pointer(&host[0])
		pinner.Pin(ptr)
		flags = flags&^driver.MemUseHostPtr | driver.MemCopyHostPtr
	}
	mh, status := c.drv().CreateImage(h, flags, format, desc, ptr)
	pinner.Unpin()
	if err := check("create image", status); err != nil {
		return nil, err
	}

	img := &Image{memObject: memObject{ctx: c, id: id}, format: format, desc: desc}
	img.init(img, KindImage, mh, c.drv().ReleaseMemObject, c.rt.opts.tracker)
	return img, nil
}

// CreateImage2D uploads src as an RGBA8 2D image. Sources in other color
// models are converted first.
func (c *Context) CreateImage2D(flags driver.MemFlags, src image.Image, id any) (*Image, error) {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}

	format := driver.ImageFormat{Order: driver.ChannelRGBA, Type: driver.ChannelUnormInt8}
	desc := driver.ImageDesc{
		Type:     driver.MemObjectImage2D,
		Width:    b.Dx(),
		Height:   b.Dy(),
		RowPitch: rgba.Stride,
	}
	return c.CreateImage(flags, format, desc, rgba.Pix, id)
}
