package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

// NoisyImage returns a w×h RGBA image filled with seeded noise. Noise keeps
// encoded fixtures above the minimum file size that flat images would fall
// under.
func NoisyImage(w, h int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.IntN(256)),
				G: uint8(rng.IntN(256)),
				B: uint8(rng.IntN(256)),
				A: 255,
			})
		}
	}
	return img
}

// PNG encodes a noisy w×h PNG.
func PNG(t testing.TB, w, h int, seed uint64) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, NoisyImage(w, h, seed)); err != nil {
		t.Fatalf("testutil: encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes a noisy w×h JPEG without EXIF.
func JPEG(t testing.TB, w, h int, seed uint64) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, NoisyImage(w, h, seed), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("testutil: encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// EXIF is the subset of tags JPEGWithEXIF writes.
type EXIF struct {
	Make       string
	Model      string
	CapturedAt time.Time // zero omits DateTime
	HasGPS     bool
	Lat, Lon   float64
	Alt        float64
}

// JPEGWithEXIF encodes a noisy JPEG and splices an APP1 EXIF segment
// carrying x right after the SOI marker.
func JPEGWithEXIF(t testing.TB, w, h int, seed uint64, x EXIF) []byte {
	t.Helper()
	body := JPEG(t, w, h, seed)
	tiff := buildTIFF(x)

	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xE1})
	payload := append([]byte("Exif\x00\x00"), tiff...)
	_ = binary.Write(&seg, binary.BigEndian, uint16(len(payload)+2))
	seg.Write(payload)

	out := make([]byte, 0, len(body)+seg.Len())
	out = append(out, body[:2]...) // SOI
	out = append(out, seg.Bytes()...)
	out = append(out, body[2:]...)
	return out
}

const (
	tiffByte     = 1
	tiffASCII    = 2
	tiffLong     = 4
	tiffRational = 5
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: tiffASCII, count: uint32(len(b)), data: b}
}

func rationalEntry(tag uint16, vals ...[2]uint32) ifdEntry {
	var buf bytes.Buffer
	for _, v := range vals {
		_ = binary.Write(&buf, binary.BigEndian, v[0])
		_ = binary.Write(&buf, binary.BigEndian, v[1])
	}
	return ifdEntry{tag: tag, typ: tiffRational, count: uint32(len(vals)), data: buf.Bytes()}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return ifdEntry{tag: tag, typ: tiffLong, count: 1, data: b}
}

// dms splits a non-negative decimal degree value into degree, minute and
// second rationals (seconds to 1/10000).
func dms(v float64) [][2]uint32 {
	d := math.Floor(v)
	m := math.Floor((v - d) * 60)
	s := ((v-d)*60 - m) * 60
	return [][2]uint32{{uint32(d), 1}, {uint32(m), 1}, {uint32(math.Round(s * 10000)), 10000}}
}

// ifdBlob lays out one IFD at offset start (relative to the TIFF header),
// followed by its out-of-line values.
func ifdBlob(start uint32, entries []ifdEntry) []byte {
	dataOff := start + uint32(2+12*len(entries)+4)
	var head, data bytes.Buffer
	_ = binary.Write(&head, binary.BigEndian, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&head, binary.BigEndian, e.tag)
		_ = binary.Write(&head, binary.BigEndian, e.typ)
		_ = binary.Write(&head, binary.BigEndian, e.count)
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			head.Write(v)
			continue
		}
		_ = binary.Write(&head, binary.BigEndian, dataOff+uint32(data.Len()))
		data.Write(e.data)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	_ = binary.Write(&head, binary.BigEndian, uint32(0))
	return append(head.Bytes(), data.Bytes()...)
}

func buildTIFF(x EXIF) []byte {
	var ifd0 []ifdEntry
	if x.Make != "" {
		ifd0 = append(ifd0, asciiEntry(0x010F, x.Make))
	}
	if x.Model != "" {
		ifd0 = append(ifd0, asciiEntry(0x0110, x.Model))
	}
	if !x.CapturedAt.IsZero() {
		ifd0 = append(ifd0, asciiEntry(0x0132, x.CapturedAt.Format("2006:01:02 15:04:05")))
	}

	const headerLen = 8
	var gps []byte
	if x.HasGPS {
		// Layout once with a placeholder pointer to learn IFD0's size.
		withPtr := append(append([]ifdEntry(nil), ifd0...), longEntry(0x8825, 0))
		gpsOff := uint32(headerLen + len(ifdBlob(headerLen, withPtr)))
		ifd0 = append(ifd0, longEntry(0x8825, gpsOff))

		latRef, lonRef := "N", "E"
		lat, lon := x.Lat, x.Lon
		if lat < 0 {
			latRef, lat = "S", -lat
		}
		if lon < 0 {
			lonRef, lon = "W", -lon
		}
		altRef := byte(0)
		alt := x.Alt
		if alt < 0 {
			altRef, alt = 1, -alt
		}
		gps = ifdBlob(gpsOff, []ifdEntry{
			asciiEntry(0x0001, latRef),
			rationalEntry(0x0002, dms(lat)...),
			asciiEntry(0x0003, lonRef),
			rationalEntry(0x0004, dms(lon)...),
			{tag: 0x0005, typ: tiffByte, count: 1, data: []byte{altRef}},
			rationalEntry(0x0006, [2]uint32{uint32(math.Round(alt * 100)), 100}),
		})
	}

	var out bytes.Buffer
	out.WriteString("MM")
	_ = binary.Write(&out, binary.BigEndian, uint16(42))
	_ = binary.Write(&out, binary.BigEndian, uint32(headerLen))
	out.Write(ifdBlob(headerLen, ifd0))
	out.Write(gps)
	return out.Bytes()
}
