package planner

import (
	"sort"

	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/models"
	"github.com/Oliver369X/Planificador-de-Rutas-de-Micros-Santa-Cruz/internal/otp"
)

// Excess-walk penalty bands, cumulative
const (
	excessWalkSoftM = 300
	excessWalkHardM = 800
	excessWalkMaxM  = 1500
)

// generalizedCost scores an itinerary in equivalent seconds. Walking
// seconds weigh several times an in-vehicle second, each transfer costs a
// flat penalty, cumulative bands punish long total walks, rides more than
// twice the crow-flies distance count as inefficient, and a short-walk
// direct ride earns a bonus.
func generalizedCost(it otp.Itinerary, directM float64, cfg Config) float64 {
	var excessWalk float64
	if it.WalkDistance > excessWalkSoftM {
		excessWalk = (it.WalkDistance - excessWalkSoftM) * 2.0
	}
	if it.WalkDistance > excessWalkHardM {
		excessWalk += (it.WalkDistance - excessWalkHardM) * 4.0
	}
	if it.WalkDistance > excessWalkMaxM {
		excessWalk += (it.WalkDistance - excessWalkMaxM) * 10.0
	}

	var directBonus float64
	if it.Transfers == 0 && it.WalkDistance < 500 {
		directBonus = -200
	}

	var busDist float64
	for _, leg := range it.Legs {
		if leg.Mode == string(models.ModeBus) {
			busDist += leg.Distance
		}
	}
	routeEfficiency := 1.0
	if busDist > directM*2.0 {
		routeEfficiency = 1.5
	}

	return float64(it.TransitTime)*routeEfficiency +
		float64(it.WalkTime)*cfg.WalkPenaltyWeight +
		float64(it.WaitingTime) +
		float64(it.Transfers)*cfg.TransferPenaltySeconds +
		excessWalk + directBonus
}

// rank orders itineraries by generalized cost, drops extreme walkers when
// better options exist, and truncates to the requested count. The sort is
// stable so equal-cost itineraries keep their build order and identical
// requests produce identical plans.
func rank(itineraries []otp.Itinerary, directM float64, cfg Config, num int) []otp.Itinerary {
	sort.SliceStable(itineraries, func(i, j int) bool {
		return generalizedCost(itineraries[i], directM, cfg) < generalizedCost(itineraries[j], directM, cfg)
	})

	// When the shortlist already has a low-walk option, anything past the
	// podium demanding a 2 km walk is noise.
	if len(itineraries) > 3 {
		bestWalk := itineraries[0].WalkDistance
		for _, it := range itineraries[1:min(5, len(itineraries))] {
			if it.WalkDistance < bestWalk {
				bestWalk = it.WalkDistance
			}
		}
		if bestWalk < 1000 {
			kept := itineraries[:0:0]
			for i, it := range itineraries {
				if i < 3 || it.WalkDistance < 2000 {
					kept = append(kept, it)
				}
			}
			itineraries = kept
		}
	}

	if len(itineraries) > num {
		itineraries = itineraries[:num]
	}
	return itineraries
}
