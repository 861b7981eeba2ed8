package scoring

import "strings"

var wmsVendors = []struct{ name, key string }{
	{"manhattan associates", "manhattan"},
	{"manhattan wms", "manhattan"},
	{"blue yonder", "blue_yonder"},
	{"jda software", "blue_yonder"},
	{"sap", "sap"},
	{"oracle", "oracle"},
	{"infor", "infor"},
	{"netsuite", "netsuite"},
	{"highjump", "highjump"},
}

var equipmentKeywords = []struct {
	signal   string
	keywords []string
}{
	{"sortation", []string{"sortation", "sorter", "cross-belt", "tilt-tray", "shoe sorter"}},
	{"conveyor", []string{"conveyor", "conveying"}},
	{"asrs", []string{"asrs", "automated storage", "miniload", "autostore", "attabotics"}},
	{"agv_amr", []string{"agv", "amr", "autonomous mobile robot", "locus", "fetch", "geek+"}},
	{"shuttle", []string{"pallet shuttle", "shuttle system"}},
	{"vlm", []string{"vertical lift module", "vlm", "kardex"}},
	{"wms", []string{"wms", "warehouse management"}},
	{"automation", []string{"automation", "automated"}},
}

// DetectWMS names the first known warehouse-management vendor found in the
// technology list, or "unknown".
func DetectWMS(technologies []string) string {
	for _, tech := range technologies {
		t := normalize(tech)
		for _, v := range wmsVendors {
			if strings.Contains(t, v.name) {
				return v.key
			}
		}
	}
	return "unknown"
}

// DetectEquipmentSignals lists automation equipment hinted at by the
// technology list and free-text description.
func DetectEquipmentSignals(technologies []string, description string) []string {
	text := normalize(strings.Join(technologies, " ") + " " + description)
	var signals []string
	for _, e := range equipmentKeywords {
		if containsAny(text, e.keywords) {
			signals = append(signals, e.signal)
		}
	}
	return signals
}
