package engine

import (
	"fmt"
	"path"
	"strings"
)

// DefaultDatabaseName is used when a remote URL does not name a database.
const DefaultDatabaseName = "ycsb"

// Target identifies where a storage engine instance lives. It is resolved
// once at startup and immutable afterwards.
type Target struct {
	// Scheme selects the driver, e.g. "plocal" or "remote".
	Scheme string

	// Location is the embedded directory path or the remote host:port.
	Location string

	// Name is the database name within the engine instance.
	Name string

	// Raw is the unparsed connection URL.
	Raw string
}

func (t Target) String() string {
	return t.Raw
}

// ParseTarget splits a connection URL of the form "scheme:location[/name]"
// into its parts.
//
// For embedded schemes the whole remainder is the database directory and
// the database name is its last path element, e.g.
// "plocal:/tmp/databases/ycsb". For remote schemes the remainder is
// "host:port[/name]", e.g. "remote:localhost:2424/ycsb"; the name defaults
// to DefaultDatabaseName when omitted.
func ParseTarget(url string) (Target, error) {
	parts := strings.SplitN(url, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Target{}, fmt.Errorf("engine: malformed connection url %q", url)
	}

	target := Target{
		Scheme: parts[0],
		Raw:    url,
	}

	rest := parts[1]
	switch target.Scheme {
	case "remote":
		if idx := strings.LastIndex(rest, "/"); idx >= 0 {
			target.Location = rest[:idx]
			target.Name = rest[idx+1:]
		} else {
			target.Location = rest
		}
		if target.Name == "" {
			target.Name = DefaultDatabaseName
		}
		if target.Location == "" {
			return Target{}, fmt.Errorf("engine: missing host in connection url %q", url)
		}
	default:
		// Embedded schemes: the remainder is a filesystem path.
		target.Location = rest
		target.Name = path.Base(strings.ReplaceAll(rest, "\\", "/"))
		if target.Name == "" || target.Name == "." || target.Name == "/" {
			return Target{}, fmt.Errorf("engine: cannot derive database name from url %q", url)
		}
	}

	return target, nil
}
