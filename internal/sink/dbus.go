package sink

// D-Bus names used by the stroke service.
const (
	DefaultBusName    = "io.github.halfkbd"
	DefaultObjectPath = "/io/github/halfkbd"
	Interface         = "io.github.halfkbd.Strokes"
)
