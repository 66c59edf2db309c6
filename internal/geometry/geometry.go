// Package geometry provides the geodesic measurements the editor relies on.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Service measures distances in meters and areas in square meters.
// Distance must be symmetric and non-negative.
type Service interface {
	Distance(a, b orb.Point) float64
	Area(ring orb.Ring) float64
}

// Geodesic measures on a sphere of radius orb.EarthRadius.
type Geodesic struct{}

var _ Service = Geodesic{}

// Distance returns the haversine distance between a and b.
func (Geodesic) Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// Area returns the unsigned spherical area of the ring. Open rings are
// closed before measuring.
func (Geodesic) Area(ring orb.Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	if !ring.Closed() {
		closed := make(orb.Ring, len(ring), len(ring)+1)
		copy(closed, ring)
		ring = append(closed, ring[0])
	}
	return math.Abs(geo.Area(ring))
}

// PathLength sums Distance over consecutive points.
func PathLength(s Service, ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += s.Distance(ls[i-1], ls[i])
	}
	return total
}
