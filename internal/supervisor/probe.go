package supervisor

import (
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemProbe reads socket and process tables through gopsutil.
type SystemProbe struct{}

func (SystemProbe) Listening(port int) (bool, error) {
	conns, err := net.Connections("tcp")
	if err != nil {
		return false, err
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && int(c.Laddr.Port) == port {
			return true, nil
		}
	}
	return false, nil
}

// ClientCount counts established connections to the local port.
func (SystemProbe) ClientCount(port int) (int, error) {
	conns, err := net.Connections("tcp")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range conns {
		if c.Status == "ESTABLISHED" && int(c.Laddr.Port) == port {
			n++
		}
	}
	return n, nil
}

func (SystemProbe) Alive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}
