package database

import (
	"sort"
	"strconv"
	"strings"
)

// ModelVessel is the only resource model an event output can carry.
const ModelVessel = "vessel"

// resourceOrder is the fixed order cargo contents are serialized in.
var resourceOrder = []string{"fuel"}

// Cargo is the set of resources held by a cargo module.
type Cargo struct {
	Fuel uint64 `json:"fuel"`
}

// amount returns the quantity of the named resource.
func (c Cargo) amount(resource string) uint64 {
	switch resource {
	case "fuel":
		return c.Fuel
	}
	return 0
}

// Module is a component fitted to a vessel.
type Module struct {
	Index      int    `json:"index" validate:"gte=0"`
	ModuleType string `json:"module_type" validate:"oneof=hull jump_drive cargo"`
	Blueprint  string `json:"blueprint" validate:"required,len=64,hexadecimal"`
	Delta      bool   `json:"delta"`
	Health     int    `json:"health" validate:"gte=0"`
	Contents   *Cargo `json:"contents,omitempty"`
}

// Vessel is a ship design made of a hull blueprint and its modules.
type Vessel struct {
	Blueprint string   `json:"blueprint" validate:"required,len=64,hexadecimal"`
	Modules   []Module `json:"modules" validate:"unique=Index,dive"`
}

// Module returns the module at the index.
func (v Vessel) Module(index int) (Module, bool) {
	for _, m := range v.Modules {
		if m.Index == index {
			return m, true
		}
	}
	return Module{}, false
}

// header serializes the vessel: blueprint, then every module ordered by
// index as blueprint, type, delta and health followed by cargo amounts.
func (v *Vessel) header() string {
	if v == nil {
		return ""
	}

	modules := make([]Module, len(v.Modules))
	copy(modules, v.Modules)
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Index < modules[j].Index })

	var b strings.Builder
	b.WriteString(v.Blueprint)

	for _, m := range modules {
		b.WriteString(m.Blueprint)
		b.WriteString(m.ModuleType)
		b.WriteString(strconv.FormatBool(m.Delta))
		b.WriteString(strconv.Itoa(m.Health))

		if m.ModuleType == "cargo" && m.Contents != nil {
			for _, resource := range resourceOrder {
				b.WriteString(strconv.FormatUint(m.Contents.amount(resource), 10))
			}
		}
	}

	return b.String()
}
