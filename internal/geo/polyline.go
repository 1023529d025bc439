package geo

import "strings"

// EncodePolyline encodes an ordered coordinate sequence using Google's
// precision-5 polyline algorithm: deltas scaled by 1e5, zig-zag signed,
// emitted in 5-bit chunks offset by 63 with a continuation bit on every
// non-final chunk. An empty input yields the empty string.
func EncodePolyline(coords []LatLng) string {
	if len(coords) == 0 {
		return ""
	}

	var sb strings.Builder
	var prevLat, prevLon int64

	for _, c := range coords {
		latE5 := round5(c.Lat)
		lonE5 := round5(c.Lon)

		encodeSigned(&sb, latE5-prevLat)
		encodeSigned(&sb, lonE5-prevLon)

		prevLat = latE5
		prevLon = lonE5
	}

	return sb.String()
}

// DecodePolyline reverses EncodePolyline. It is used for round-trip
// verification; a truncated input returns the points decoded so far.
func DecodePolyline(s string) []LatLng {
	var coords []LatLng
	var lat, lon int64
	i := 0

	for i < len(s) {
		dLat, n := decodeSigned(s[i:])
		if n == 0 {
			break
		}
		i += n

		dLon, n := decodeSigned(s[i:])
		if n == 0 {
			break
		}
		i += n

		lat += dLat
		lon += dLon
		coords = append(coords, LatLng{Lat: float64(lat) / 1e5, Lon: float64(lon) / 1e5})
	}

	return coords
}

func round5(v float64) int64 {
	if v < 0 {
		return int64(v*1e5 - 0.5)
	}
	return int64(v*1e5 + 0.5)
}

func encodeSigned(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

func decodeSigned(s string) (int64, int) {
	var u int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		u |= (b & 0x1f) << shift
		if b < 0x20 {
			v := u >> 1
			if u&1 != 0 {
				v = ^v
			}
			return v, i + 1
		}
		shift += 5
	}
	return 0, 0
}
