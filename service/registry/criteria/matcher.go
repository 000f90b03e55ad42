package criteria

import (
	"github.com/molginc/actionlib/service/registry"
)

// FilterByStatus reports whether a record with the given status passes the
// supplied list parameters. Only the single "Status" parameter is
// understood; anything else matches everything.
func FilterByStatus(status string, parameters []*registry.Parameter) bool {
	switch len(parameters) {
	case 0:
		return true
	case 1:
		if parameters[0].Name == "Status" {
			switch actual := parameters[0].Value.(type) {
			case string:
				return status == actual
			case []string:
				for _, s := range actual {
					if status == s {
						return true
					}
				}
				return false
			}
		}
	}
	return true
}
