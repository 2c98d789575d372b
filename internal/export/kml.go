package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"image/color"
	"strconv"
	"strings"
	"time"

	kml "github.com/twpayne/go-kml"

	"github.com/ashita-ai/fieldmark/internal/model"
)

const (
	fieldFolderName = "Field Documentation"
	clusterStyleID  = "cluster"
)

type iconStyle struct {
	id    string
	color color.RGBA
	scale float64
}

var documentStyles = []iconStyle{
	{id: "quality-high", color: color.RGBA{R: 0x00, G: 0xc8, B: 0x00, A: 0xff}, scale: 1.1},
	{id: "quality-medium", color: color.RGBA{R: 0xff, G: 0xc8, B: 0x00, A: 0xff}, scale: 1.0},
	{id: "quality-low", color: color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}, scale: 0.9},
	{id: clusterStyleID, color: color.RGBA{R: 0x00, G: 0x80, B: 0xff, A: 0xff}, scale: 1.4},
}

// KML renders the primary document: one folder per context-layer type (in
// first-seen order) followed by the field documentation folder.
func KML(placemarks []model.Placemark, clusters []model.Cluster, opts Options) (string, error) {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	desc := opts.Description
	if desc == "" {
		desc = fmt.Sprintf("%d geotagged photos", len(placemarks))
		if len(clusters) > 0 {
			desc += fmt.Sprintf(" in %d clusters", len(clusters))
		}
	}

	doc := kml.Document(kml.Name(title), kml.Description(desc))
	for _, s := range documentStyles {
		doc.Add(kml.SharedStyle(s.id, kml.IconStyle(kml.Color(s.color), kml.Scale(s.scale))))
	}
	for _, f := range contextFolders(opts.ContextLayers) {
		doc.Add(f)
	}

	field := kml.Folder(kml.Name(fieldFolderName))
	if len(clusters) > 0 {
		for i, c := range clusters {
			field.Add(clusterFolder(i+1, c))
		}
	} else {
		for _, p := range placemarks {
			field.Add(assetPlacemark(p))
		}
	}
	doc.Add(field)

	var buf bytes.Buffer
	if err := kml.KML(doc).WriteIndent(&buf, "", "  "); err != nil {
		return "", fmt.Errorf("export: encode kml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

func contextFolders(layers []model.ContextLayer) []*kml.CompoundElement {
	var folders []*kml.CompoundElement
	byType := map[string]*kml.CompoundElement{}
	for _, l := range layers {
		f, ok := byType[l.Type]
		if !ok {
			f = kml.Folder(kml.Name(l.Type))
			byType[l.Type] = f
			folders = append(folders, f)
		}
		for _, feat := range l.Features {
			if pm, ok := contextPlacemark(feat); ok {
				f.Add(pm)
			}
		}
	}
	return folders
}

func contextPlacemark(f model.ContextFeature) (*kml.CompoundElement, bool) {
	var geometry kml.Element
	switch {
	case len(f.Polygon) > 0 && len(f.Polygon[0]) >= 3:
		geometry = kml.Polygon(kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(closedRing(f.Polygon[0])...))))
	case f.Point != nil:
		geometry = kml.Point(kml.Coordinates(coordinate(*f.Point)))
	default:
		return nil, false
	}
	pm := kml.Placemark(kml.Name(f.Name))
	if f.Description != "" {
		pm.Add(kml.Description(f.Description))
	}
	return pm.Add(geometry), true
}

func clusterFolder(n int, c model.Cluster) *kml.CompoundElement {
	summary := withID(kml.Placemark(
		kml.Name(fmt.Sprintf("Cluster %d", n)),
		kml.Description(fmt.Sprintf("%d photos within %s m<br/>Representative: %s",
			len(c.Members), formatFloat(c.RadiusMeters), html.EscapeString(c.Representative.Name))),
		kml.StyleURL("#"+clusterStyleID),
		kml.Point(kml.Coordinates(coordinate(c.Center))),
	), c.ID.String())

	f := kml.Folder(kml.Name(fmt.Sprintf("Cluster %d (%d photos)", n, len(c.Members))), summary)
	for _, m := range c.Members {
		f.Add(assetPlacemark(m))
	}
	return f
}

func assetPlacemark(p model.Placemark) *kml.CompoundElement {
	var desc strings.Builder
	fmt.Fprintf(&desc, "<b>Quality:</b> %s", html.EscapeString(string(p.Quality)))
	if p.CapturedAt != nil {
		fmt.Fprintf(&desc, "<br/><b>Captured:</b> %s", p.CapturedAt.UTC().Format(time.RFC3339))
	}
	if p.CameraModel != "" {
		fmt.Fprintf(&desc, "<br/><b>Camera:</b> %s", html.EscapeString(p.CameraModel))
	}
	if len(p.Thumbnail) > 0 {
		fmt.Fprintf(&desc, `<br/><img src="%s"/>`, thumbnailEntry(p))
	}

	return withID(kml.Placemark(
		kml.Name(p.Name),
		kml.Description(desc.String()),
		kml.StyleURL("#"+p.StyleKey),
		kml.ExtendedData(
			data("fileSize", strconv.FormatInt(p.FileSize, 10)),
			data("quality", string(p.Quality)),
			data("cameraModel", p.CameraModel),
			data("gpsAccuracy", formatFloat(p.GPSAccuracy)),
			data("gpsSource", string(p.GPSSource)),
		),
		kml.Point(kml.Coordinates(coordinate(p.Coordinates))),
	), p.ID.String())
}

// data builds <Data name="..."><value>...</value></Data>.
func data(name, value string) *kml.CompoundElement {
	d := kml.Data(kml.Value(value))
	d.Attr = append(d.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: name})
	return d
}

func withID(e *kml.CompoundElement, id string) *kml.CompoundElement {
	e.Attr = append(e.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: id})
	return e
}

func coordinate(c model.Coordinates) kml.Coordinate {
	return kml.Coordinate{Lon: c.Lon, Lat: c.Lat, Alt: c.Alt}
}

// closedRing repeats the first vertex when the ring is open.
func closedRing(ring []model.Coordinates) []kml.Coordinate {
	out := make([]kml.Coordinate, 0, len(ring)+1)
	for _, c := range ring {
		out = append(out, coordinate(c))
	}
	if ring[0] != ring[len(ring)-1] {
		out = append(out, coordinate(ring[0]))
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func thumbnailEntry(p model.Placemark) string {
	return "thumbnails/" + p.ID.String() + ".jpg"
}
