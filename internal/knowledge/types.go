package knowledge

import "time"

// Type is the kind of equipment an entry describes.
type Type string

const (
	TypeMount       Type = "mount"
	TypeCamera      Type = "camera"
	TypeGuideCamera Type = "guide-camera"
	TypeFocuser     Type = "focuser"
	TypeFilterWheel Type = "filter-wheel"
	TypeDome        Type = "dome"
	TypeWeather     Type = "weather"
	TypeAux         Type = "aux"
	TypeUnknown     Type = "unknown"
)

// Entry describes one piece of equipment and the driver that serves it.
type Entry struct {
	Type            Type     `json:"type"`
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model"`
	DriverName      string   `json:"driver_name"`
	PackageName     string   `json:"package_name,omitempty"`
	AutoInstallable bool     `json:"auto_installable"`
	Aliases         []string `json:"aliases,omitempty"`
	Category        string   `json:"category,omitempty"`
}

// Package is the installable package for the entry, defaulting to the driver.
func (e Entry) Package() string {
	if e.PackageName != "" {
		return e.PackageName
	}
	return e.DriverName
}

// Stats summarises the database for observability.
type Stats struct {
	Total          int            `json:"total"`
	ByID           int            `json:"by_id"`
	ByName         int            `json:"by_name"`
	ByType         map[Type]int   `json:"by_type"`
	ByManufacturer map[string]int `json:"by_manufacturer"`
	LastUpdated    time.Time      `json:"last_updated"`
	Source         string         `json:"source"`
}

// Sources of the in-memory database
const (
	SourceStatic = "static"
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// cacheFile is the on-disk JSON layout.
type cacheFile struct {
	LastUpdated time.Time        `json:"last_updated"`
	Entries     map[string]Entry `json:"entries"`
	Drivers     []Entry          `json:"drivers,omitempty"`
}
