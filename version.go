package geoloqi

// Version is the library version reported in the User-Agent header.
const Version = "0.4.0"

// UserAgent returns the default User-Agent string, e.g. "geoloqi-go/0.4.0".
func UserAgent() string {
	return "geoloqi-go/" + Version
}
