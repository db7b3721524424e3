package dispatch

import (
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/textfold"
)

// WarningNoSector is returned when neither a linked nor a default sector exists.
const WarningNoSector = "product not linked to any dispatch sector"

var kitchenNames = map[string]bool{"kitchen": true, "command": true, "cozinha": true, "comanda": true}

var counterNames = map[string]bool{"counter": true, "bar": true, "balcao": true}

// Route is the resolved set of sectors for a product.
type Route struct {
	Sectors  []database.DispatchSector
	Fallback bool   // resolved through the default sector
	Kitchen  bool   // some sector is a kitchen
	Counter  bool   // some sector is a counter/bar
	Warning  string // set when Sectors is empty
}

// Classify reports whether a sector name denotes a kitchen or a counter.
func Classify(name string) (kitchen, counter bool) {
	for _, w := range textfold.Words(name) {
		if kitchenNames[w] {
			kitchen = true
		}
		if counterNames[w] {
			counter = true
		}
	}
	return kitchen, counter
}

func newRoute(sectors []database.DispatchSector, fallback bool) Route {
	r := Route{Sectors: sectors, Fallback: fallback}
	if len(sectors) == 0 {
		r.Warning = WarningNoSector
		return r
	}
	for _, s := range sectors {
		k, c := Classify(s.Name)
		r.Kitchen = r.Kitchen || k
		r.Counter = r.Counter || c
	}
	return r
}
