package usb

import (
	"sort"
	"strings"
	"unicode"
)

// Brand recognises an equipment maker by vendor id or by a keyword found in
// the device strings, and knows what its driver executables are called.
type Brand struct {
	Name           string
	VendorIDs      []string
	Keywords       []string
	DriverPatterns []string
}

// Brands is the static brand table.
var Brands = []Brand{
	{Name: "ZWO", VendorIDs: []string{"03c3"}, Keywords: []string{"zwo", "asi"}, DriverPatterns: []string{"asi"}},
	{Name: "QHYCCD", VendorIDs: []string{"1618"}, Keywords: []string{"qhy"}, DriverPatterns: []string{"qhy"}},
	{Name: "Player One", VendorIDs: []string{"a0a0"}, Keywords: []string{"player one", "playerone"}, DriverPatterns: []string{"playerone"}},
	{Name: "Atik", VendorIDs: []string{"20e7"}, Keywords: []string{"atik"}, DriverPatterns: []string{"atik"}},
	{Name: "SBIG", VendorIDs: []string{"0d97"}, Keywords: []string{"sbig"}, DriverPatterns: []string{"sbig"}},
	{Name: "Starlight Xpress", VendorIDs: []string{"1278"}, Keywords: []string{"starlight xpress", "lodestar"}, DriverPatterns: []string{"sx_"}},
	{Name: "ToupTek", Keywords: []string{"touptek"}, DriverPatterns: []string{"toupcam", "touptek"}},
	{Name: "Canon", VendorIDs: []string{"04a9"}, Keywords: []string{"canon"}, DriverPatterns: []string{"canon", "gphoto"}},
	{Name: "Nikon", VendorIDs: []string{"04b0"}, Keywords: []string{"nikon"}, DriverPatterns: []string{"nikon", "gphoto"}},
	{Name: "Celestron", Keywords: []string{"celestron"}, DriverPatterns: []string{"celestron"}},
	{Name: "Sky-Watcher", Keywords: []string{"sky-watcher", "skywatcher", "synscan"}, DriverPatterns: []string{"eqmod", "skywatcher", "synscan"}},
	{Name: "iOptron", Keywords: []string{"ioptron"}, DriverPatterns: []string{"ioptron"}},
	{Name: "Moonlite", Keywords: []string{"moonlite"}, DriverPatterns: []string{"moonlite"}},
	{Name: "Pegasus Astro", Keywords: []string{"pegasus"}, DriverPatterns: []string{"pegasus"}},
}

// MatchBrand returns the first brand matching the vendor id or, failing
// that, a keyword in description, manufacturer or product.
func MatchBrand(raw RawDevice) (Brand, bool) {
	vid := strings.ToLower(raw.VendorID)
	for _, b := range Brands {
		for _, v := range b.VendorIDs {
			if v == vid {
				return b, true
			}
		}
	}

	text := strings.ToLower(raw.Description + " " + raw.Manufacturer + " " + raw.Product)
	for _, b := range Brands {
		for _, k := range b.Keywords {
			if strings.Contains(text, k) {
				return b, true
			}
		}
	}

	return Brand{}, false
}

// Identify assigns brand, model and matching drivers to a raw device.
func Identify(raw RawDevice, installed []string) Device {
	dev := Device{RawDevice: raw}

	brand, ok := MatchBrand(raw)
	if ok {
		dev.Brand = brand.Name
		dev.Model = modelName(raw, brand)
		dev.MatchingDrivers = matchPatterns(installed, brand.DriverPatterns)
		return dev
	}

	dev.Model = raw.Product
	if dev.Model == "" {
		dev.Model = raw.Description
	}
	dev.MatchingDrivers = matchPatterns(installed, Tokens(raw.Description))
	return dev
}

func modelName(raw RawDevice, brand Brand) string {
	if raw.Product != "" {
		return raw.Product
	}
	model := raw.Description
	lower := strings.ToLower(model)
	for _, prefix := range append([]string{strings.ToLower(brand.Name)}, brand.Keywords...) {
		if strings.HasPrefix(lower, prefix+" ") {
			return strings.TrimSpace(model[len(prefix):])
		}
	}
	return model
}

// Tokens splits a description into lowercase words of at least 3 characters.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

func matchPatterns(installed, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	var out []string
	for _, drv := range installed {
		name := strings.ToLower(drv)
		for _, p := range patterns {
			if strings.Contains(name, p) {
				out = append(out, drv)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
