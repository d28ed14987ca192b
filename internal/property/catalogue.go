package property

// catalogueEntry describes one known property tag: its logical wire type,
// a human description, and an optional validator run against the coerced
// wire bytes at construction time.
type catalogueEntry struct {
	Type        string
	Description string
	Validator   func([]byte) bool
}

// catalogue is the static, immutable table of known property tags. It is
// built once at package initialisation, mirroring the teacher's table-driven
// WellKnownSIDs construction style.
var catalogue = map[string]catalogueEntry{
	"syNm": {Type: "str", Description: "Device name"},
	"syPW": {Type: "str", Description: "Device password"},
	"syAP": {Type: "str", Description: "Base station board/model identifier"},
	"sySN": {Type: "str", Description: "Serial number"},
	"raMA": {Type: "mac", Description: "Radio MAC address"},
	"waIP": {Type: "ip4", Description: "WAN IP address"},
	"waSM": {Type: "ip4", Description: "WAN subnet mask"},
	"waRA": {Type: "ip4", Description: "WAN router address"},
	"waMA": {Type: "mac", Description: "WAN MAC address"},
	"waDN": {Type: "str", Description: "WAN domain name"},
	"waDC": {Type: "str", Description: "WAN DHCP client identifier"},
	"laIP": {Type: "ip4", Description: "LAN IP address"},
	"laSM": {Type: "ip4", Description: "LAN subnet mask"},
	"laMA": {Type: "mac", Description: "LAN MAC address"},
	"dhBg": {Type: "ip4", Description: "DHCP range begin"},
	"dhEn": {Type: "ip4", Description: "DHCP range end"},
	"dhSN": {Type: "str", Description: "DHCP domain name suffix"},
	"dhLe": {Type: "u32", Description: "DHCP lease time, seconds", Validator: func(b []byte) bool {
		return decodeU32(b) > 0
	}},
	"DRes": {Type: "u8", Description: "DHCP reserved-address count"},
	"dhSL": {Type: "u8", Description: "DHCP static lease count"},
	"naFl": {Type: "u32", Description: "NAT flags bitmask"},
	"nDMZ": {Type: "ip4", Description: "DMZ host address"},
	"tACL": {Type: "bin", Description: "Timed access-control list"},
	"ntSV": {Type: "str", Description: "NTP server hostname"},
	"slvl": {Type: "u8", Description: "Syslog level", Validator: func(b []byte) bool {
		return len(b) == 1 && b[0] <= 7
	}},
	"logm": {Type: "u8", Description: "Log mode"},
	"usrd": {Type: "bin", Description: "User directory blob"},
	"uuid": {Type: "uid", Description: "Device UUID"},
	"syUT": {Type: "u32", Description: "System uptime, seconds"},
	"feat": {Type: "bin", Description: "Supported feature bitmap"},
	"prop": {Type: "bin", Description: "Opaque property blob"},
	"acRB": {Type: "u8", Description: "Reboot action"},
	"acRN": {Type: "u8", Description: "Rename action"},
	"acRF": {Type: "u8", Description: "Factory reset action"},
	"auHK": {Type: "bin", Description: "Authentication handshake key"},
	"auHE": {Type: "boo", Description: "Authentication handshake enabled"},
	"auNP": {Type: "str", Description: "New administrator password"},
	"auRR": {Type: "boo", Description: "Require re-authentication on reconnect"},
	"6aut": {Type: "boo", Description: "IPv6 autoconfiguration enabled"},
	"6cfg": {Type: "u8", Description: "IPv6 configuration mode", Validator: func(b []byte) bool {
		return len(b) == 1 && b[0] <= 2
	}},
	"6Wad": {Type: "ip6", Description: "IPv6 WAN address"},
	"6Wgw": {Type: "ip6", Description: "IPv6 WAN gateway"},
	"6Lad": {Type: "ip6", Description: "IPv6 LAN address"},
	"6Lfx": {Type: "u8", Description: "IPv6 LAN prefix length", Validator: func(b []byte) bool {
		return len(b) == 1 && b[0] <= 128
	}},
	"6sfw": {Type: "boo", Description: "IPv6 firewall enabled"},
	"6trd": {Type: "bin", Description: "6to4 relay/tunnel configuration"},
	"6fwl": {Type: "bin", Description: "IPv6 firewall rule list"},
	"6NS1": {Type: "ip6", Description: "IPv6 DNS server 1"},
	"6NS2": {Type: "ip6", Description: "IPv6 DNS server 2"},
	"6NS3": {Type: "ip6", Description: "IPv6 DNS server 3"},
	"APID": {Type: "str", Description: "Wireless network identifier (SSID)"},
	"LEDc": {Type: "u8", Description: "Status LED control mode", Validator: func(b []byte) bool {
		return len(b) == 1 && b[0] <= 2
	}},
	"leAc": {Type: "boo", Description: "LED activity indication enabled"},
	"isAC": {Type: "boo", Description: "Wireless access control enabled"},
	"GPIs": {Type: "bin", Description: "Guest network policy set"},
	"SUEn": {Type: "boo", Description: "Software update checking enabled"},
	"SUFq": {Type: "u32", Description: "Software update check frequency, seconds"},
	"wbEn": {Type: "boo", Description: "Wireless bridging enabled"},
	"wbHN": {Type: "str", Description: "Home network name"},
	"wbHU": {Type: "str", Description: "Home network username"},
	"wbHP": {Type: "str", Description: "Home network password"},
	"wbAC": {Type: "mac", Description: "Wireless bridge access MAC"},
	"iCld": {Type: "boo", Description: "iCloud remote access enabled"},
	"iCLH": {Type: "str", Description: "iCloud relay host"},
	// raPo resolves the catalogue's two-definition ambiguity in favour of the
	// later entry: type str, "Transmit Power" (see DESIGN.md Open Question 3).
	"raPo": {Type: "str", Description: "Transmit Power"},
}

// Lookup returns the catalogue entry for tag and whether it was found.
func Lookup(tag string) (entry catalogueEntry, ok bool) {
	entry, ok = catalogue[tag]
	return
}

// KnownTags returns every tag registered in the static catalogue, in no
// particular order. Intended for diagnostics and tests, not wire use.
func KnownTags() []string {
	tags := make([]string, 0, len(catalogue))
	for tag := range catalogue {
		tags = append(tags, tag)
	}
	return tags
}
