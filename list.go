package serial

import (
	"fmt"
	"sort"

	bugst "go.bug.st/serial"
)

// ListPorts returns the serial devices present on the system, sorted by
// path.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListPorts, err)
	}
	sort.Strings(ports)
	return ports, nil
}
