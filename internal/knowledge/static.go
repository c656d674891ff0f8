package knowledge

// staticEntries are well-known vendor:product mappings shipped with the
// binary. vendor:* entries match any product of that vendor.
var staticEntries = map[string]Entry{
	// ZWO
	"03c3:294a": {Type: TypeCamera, Manufacturer: "ZWO", Model: "ASI294MC Pro", DriverName: "indi-asi", PackageName: "indi-asi", AutoInstallable: true, Aliases: []string{"ASI294MC", "ASI294"}, Category: "cmos"},
	"03c3:2183": {Type: TypeCamera, Manufacturer: "ZWO", Model: "ASI2600MC Pro", DriverName: "indi-asi", PackageName: "indi-asi", AutoInstallable: true, Aliases: []string{"ASI2600MC", "ASI2600"}, Category: "cmos"},
	"03c3:120a": {Type: TypeGuideCamera, Manufacturer: "ZWO", Model: "ASI120MM Mini", DriverName: "indi-asi", PackageName: "indi-asi", AutoInstallable: true, Aliases: []string{"ASI120MM", "ASI120"}, Category: "guider"},
	"03c3:290a": {Type: TypeGuideCamera, Manufacturer: "ZWO", Model: "ASI290MM Mini", DriverName: "indi-asi", PackageName: "indi-asi", AutoInstallable: true, Aliases: []string{"ASI290MM", "ASI290"}, Category: "guider"},
	"03c3:1f01": {Type: TypeFilterWheel, Manufacturer: "ZWO", Model: "EFW", DriverName: "indi_asi_wheel", PackageName: "indi-asi", AutoInstallable: true, Aliases: []string{"ZWO EFW", "Electronic Filter Wheel"}, Category: "filter"},
	"03c3:1f10": {Type: TypeFocuser, Manufacturer: "ZWO", Model: "EAF", DriverName: "indi_asi_focuser", PackageName: "indi-asi", AutoInstallable: true, Aliases: []string{"ZWO EAF", "Electronic Automatic Focuser"}, Category: "focus"},
	"03c3:*":    {Type: TypeCamera, Manufacturer: "ZWO", Model: "ASI Camera", DriverName: "indi-asi", PackageName: "indi-asi", AutoInstallable: true, Category: "cmos"},

	// QHYCCD
	"1618:c294": {Type: TypeCamera, Manufacturer: "QHYCCD", Model: "QHY294M Pro", DriverName: "indi-qhy", PackageName: "indi-qhy", AutoInstallable: true, Aliases: []string{"QHY294"}, Category: "cmos"},
	"1618:0921": {Type: TypeGuideCamera, Manufacturer: "QHYCCD", Model: "QHY5L-II", DriverName: "indi-qhy", PackageName: "indi-qhy", AutoInstallable: true, Aliases: []string{"QHY5L", "QHY5"}, Category: "guider"},
	"1618:*":    {Type: TypeCamera, Manufacturer: "QHYCCD", Model: "QHY Camera", DriverName: "indi-qhy", PackageName: "indi-qhy", AutoInstallable: true, Category: "cmos"},

	// Player One
	"a0a0:*": {Type: TypeCamera, Manufacturer: "Player One", Model: "Player One Camera", DriverName: "indi-playerone", PackageName: "indi-playerone", AutoInstallable: true, Aliases: []string{"Neptune", "Poseidon", "Uranus", "Mars"}, Category: "cmos"},

	// Atik, SBIG, Starlight Xpress
	"20e7:*": {Type: TypeCamera, Manufacturer: "Atik", Model: "Atik Camera", DriverName: "indi-atik", PackageName: "indi-atik", AutoInstallable: true, Category: "ccd"},
	"0d97:*": {Type: TypeCamera, Manufacturer: "SBIG", Model: "SBIG Camera", DriverName: "indi-sbig", PackageName: "indi-sbig", AutoInstallable: false, Category: "ccd"},
	"1278:0507": {Type: TypeGuideCamera, Manufacturer: "Starlight Xpress", Model: "Lodestar", DriverName: "indi_sx_ccd", PackageName: "indi-bin", AutoInstallable: true, Aliases: []string{"Lodestar X2"}, Category: "guider"},
	"1278:0920": {Type: TypeFilterWheel, Manufacturer: "Starlight Xpress", Model: "Filter Wheel", DriverName: "indi_sx_wheel", PackageName: "indi-bin", AutoInstallable: true, Aliases: []string{"SX Wheel"}, Category: "filter"},
	"1278:*":    {Type: TypeCamera, Manufacturer: "Starlight Xpress", Model: "SX Camera", DriverName: "indi_sx_ccd", PackageName: "indi-bin", AutoInstallable: true, Category: "ccd"},

	// DSLRs go through gphoto
	"04a9:*": {Type: TypeCamera, Manufacturer: "Canon", Model: "Canon DSLR", DriverName: "indi-gphoto", PackageName: "indi-gphoto", AutoInstallable: true, Aliases: []string{"EOS"}, Category: "dslr"},
	"04b0:*": {Type: TypeCamera, Manufacturer: "Nikon", Model: "Nikon DSLR", DriverName: "indi-gphoto", PackageName: "indi-gphoto", AutoInstallable: true, Category: "dslr"},

	// Mounts and focusers behind USB-serial bridges
	"067b:2303": {Type: TypeMount, Manufacturer: "Sky-Watcher", Model: "EQMod Cable", DriverName: "indi_eqmod_telescope", PackageName: "indi-eqmod", AutoInstallable: true, Aliases: []string{"EQMod", "SynScan", "EQ6-R", "HEQ5"}, Category: "mount"},
	"0403:6015": {Type: TypeFocuser, Manufacturer: "Pegasus Astro", Model: "FocusCube", DriverName: "indi_pegasus_focuscube", PackageName: "indi-bin", AutoInstallable: true, Aliases: []string{"Focus Cube"}, Category: "focus"},
	"2341:0043": {Type: TypeFocuser, Manufacturer: "Moonlite", Model: "Moonlite Focuser", DriverName: "indi_moonlite_focus", PackageName: "indi-bin", AutoInstallable: true, Aliases: []string{"Moonlite"}, Category: "focus"},
	"04d8:f8e3": {Type: TypeAux, Manufacturer: "Pegasus Astro", Model: "Ultimate Powerbox v2", DriverName: "indi_pegasus_upb", PackageName: "indi-bin", AutoInstallable: true, Aliases: []string{"UPBv2", "Powerbox"}, Category: "power"},
	"0403:6001": {Type: TypeMount, Manufacturer: "iOptron", Model: "iOptron Mount", DriverName: "indi_ioptronv3_telescope", PackageName: "indi-bin", AutoInstallable: false, Aliases: []string{"CEM40", "GEM45", "iOptron"}, Category: "mount"},
	"10c4:ea60": {Type: TypeMount, Manufacturer: "Celestron", Model: "Celestron AUX", DriverName: "indi_celestron_aux", PackageName: "indi-bin", AutoInstallable: false, Aliases: []string{"NexStar", "Celestron"}, Category: "mount"},

	// Domes and weather
	"0403:6010": {Type: TypeDome, Manufacturer: "NexDome", Model: "NexDome", DriverName: "indi_nexdome", PackageName: "indi-bin", AutoInstallable: false, Category: "dome"},
	"1a86:7523": {Type: TypeWeather, Manufacturer: "Lunatico", Model: "AAG CloudWatcher", DriverName: "indi-aagcloudwatcher-ng", PackageName: "indi-aagcloudwatcher-ng", AutoInstallable: true, Aliases: []string{"CloudWatcher"}, Category: "weather"},
}
