package proximity

import (
	"math"

	"etofusion/internal/types"
)

// WGS-84 ellipsoid, the model PostGIS geography distances use.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = wgs84A * (1 - wgs84F)

	// Mean Earth radius for the spherical fallback.
	earthRadiusKm = 6371.0088

	vincentyMaxIter   = 200
	vincentyTolerance = 1e-12
)

// DistanceKm returns the ellipsoidal distance between a and b. Nearly
// antipodal pairs where Vincenty does not converge use the haversine distance.
func DistanceKm(a, b types.Point) float64 {
	if d, ok := VincentyKm(a, b); ok {
		return d
	}
	return HaversineKm(a, b)
}

// VincentyKm solves the inverse geodesic problem on the WGS-84 ellipsoid.
// ok is false when the iteration fails to converge.
func VincentyKm(a, b types.Point) (float64, bool) {
	L := math.Remainder(toRad(b.Lon-a.Lon), 2*math.Pi)
	U1 := math.Atan((1 - wgs84F) * math.Tan(toRad(a.Lat)))
	U2 := math.Atan((1 - wgs84F) * math.Tan(toRad(b.Lat)))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cos2Alpha, cos2SigmaM float64
	converged := false
	for i := 0; i < vincentyMaxIter; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		t1 := cosU2 * sinLambda
		t2 := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(t1*t1 + t2*t2)
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		if sinSigma == 0 {
			if cosSigma > 0 {
				return 0, true // coincident points
			}
			return 0, false // exactly antipodal
		}
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cos2Alpha = 1 - sinAlpha*sinAlpha
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		} else {
			cos2SigmaM = 0 // equatorial line
		}
		C := wgs84F / 16 * cos2Alpha * (4 + wgs84F*(4-3*cos2Alpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda) > math.Pi {
			return 0, false
		}
		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return 0, false
	}

	uSq := cos2Alpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	meters := wgs84B * A * (sigma - deltaSigma)
	return meters / 1000, true
}

// HaversineKm is the great-circle distance on a sphere of mean Earth radius.
func HaversineKm(a, b types.Point) float64 {
	phi1 := toRad(a.Lat)
	phi2 := toRad(b.Lat)
	dPhi := toRad(b.Lat - a.Lat)
	dLambda := toRad(b.Lon - a.Lon)

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	h = math.Min(math.Max(h, 0), 1)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
