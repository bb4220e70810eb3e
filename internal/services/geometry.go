package services

import (
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"

	"busmate/internal/apperrors"
)

// ParseGeometry converts a GeoJSON LineString into WKB. Empty input clears the geometry.
func ParseGeometry(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, apperrors.Validation("geometry", "invalid GeoJSON: "+err.Error())
	}
	if _, ok := g.(*geom.LineString); !ok {
		return nil, apperrors.Validation("geometry", "geometry must be a LineString")
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

// GeometryGeoJSON converts stored WKB back into a GeoJSON string.
func GeometryGeoJSON(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("decode wkb: %w", err)
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
