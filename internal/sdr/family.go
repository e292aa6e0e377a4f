package sdr

import (
	"fmt"
	"strings"
)

// Family is the closed set of SDR driver families the osmosdr blocks know how to address
type Family int

const (
	FamilyUnknown Family = iota
	FamilyLime
	FamilyPluto
	FamilyHackRF
	FamilyRTL
	FamilyUHD
	FamilyBladeRF
)

var familyNames = map[Family]string{
	FamilyUnknown: "unknown",
	FamilyLime:    "lime",
	FamilyPluto:   "pluto",
	FamilyHackRF:  "hackrf",
	FamilyRTL:     "rtlsdr",
	FamilyUHD:     "uhd",
	FamilyBladeRF: "bladerf",
}

// osmosdr driver keys
var familyDrivers = map[Family]string{
	FamilyLime:    "lime",
	FamilyPluto:   "plutosdr",
	FamilyHackRF:  "hackrf",
	FamilyRTL:     "rtl",
	FamilyUHD:     "uhd",
	FamilyBladeRF: "bladerf",
}

// Driver identifiers that differ from the family name
var familyAliases = map[string]Family{
	"plutosdr": FamilyPluto,
	"rtl":      FamilyRTL,
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return familyNames[FamilyUnknown]
}

// ParseFamily maps a driver identifier to its family, the match is case-insensitive
func ParseFamily(driver string) Family {
	driver = strings.ToLower(strings.TrimSpace(driver))

	for f, name := range familyNames {
		if f != FamilyUnknown && name == driver {
			return f
		}
	}

	if f, ok := familyAliases[driver]; ok {
		return f
	}

	return FamilyUnknown
}

// ConnectionArgs renders the osmosdr device argument string. Drivers outside the known
// families are passed through as they are.
func ConnectionArgs(family Family, raw string) string {
	driver, ok := familyDrivers[family]
	if !ok {
		driver = raw
	}
	return fmt.Sprintf("driver=%s,soapy=0", driver)
}
