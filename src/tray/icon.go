package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 32

// drawIcon paints a film frame with a forward arrow.
func drawIcon() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := color.NRGBA{R: 0x1f, G: 0x1f, B: 0x24, A: 0xff}
	accent := color.NRGBA{R: 0x00, G: 0xc2, B: 0xd6, A: 0xff}
	for y := 4; y < iconSize-4; y++ {
		for x := 2; x < iconSize-2; x++ {
			img.SetNRGBA(x, y, frame)
		}
	}
	// Sprocket holes.
	for x := 4; x < iconSize-4; x += 6 {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 3; dx++ {
				img.SetNRGBA(x+dx, 6+dy, color.NRGBA{})
				img.SetNRGBA(x+dx, iconSize-8+dy, color.NRGBA{})
			}
		}
	}
	// Play arrow.
	for y := 10; y < iconSize-10; y++ {
		half := (iconSize - 10 - y)
		if d := y - 10; d < half {
			half = d
		}
		for x := 11; x <= 11+half*2 && x < iconSize-4; x++ {
			img.SetNRGBA(x, y, accent)
		}
	}
	return img
}

// iconICO wraps a PNG in a single-image ICO container, which the Windows
// tray accepts directly.
func iconICO() []byte {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, drawIcon()); err != nil {
		return nil
	}
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(iconSize)
	buf.WriteByte(iconSize)
	buf.WriteByte(0) // palette
	buf.WriteByte(0) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // bpp
	_ = binary.Write(&buf, binary.LittleEndian, uint32(pngBuf.Len()))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngBuf.Bytes())
	return buf.Bytes()
}
