package canvas

import (
	appErr "github.com/neoncad/engine/pkg/errors"
)

// normalizeGeometry checks the coordinate count rules for kind and returns
// a private copy. Polygon rings are closed if the caller left them open.
func normalizeGeometry(kind Kind, in []Coord) ([]Coord, error) {
	for _, c := range in {
		if !c.finite() {
			return nil, appErr.New(appErr.CodeInvalidGeometry, "coordinates must be finite")
		}
	}
	out := append([]Coord(nil), in...)

	switch kind {
	case KindPoint, KindText:
		if len(out) != 1 {
			return nil, appErr.Newf(appErr.CodeInvalidGeometry, "%s needs exactly 1 coordinate, got %d", kind, len(out))
		}
	case KindLine:
		if len(out) < 2 {
			return nil, appErr.Newf(appErr.CodeInvalidGeometry, "line needs at least 2 coordinates, got %d", len(out))
		}
	case KindPolygon:
		if n := distinctVertices(out); n < 3 {
			return nil, appErr.Newf(appErr.CodeInvalidGeometry, "polygon needs at least 3 distinct vertices, got %d", n)
		}
		if out[0] != out[len(out)-1] {
			out = append(out, out[0])
		}
	}
	return out, nil
}

func distinctVertices(cs []Coord) int {
	seen := make(map[Coord]struct{}, len(cs))
	for _, c := range cs {
		seen[c] = struct{}{}
	}
	return len(seen)
}
