package runner

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

var dialTimeout = net.DialTimeout

// PortListening reports whether something accepts TCP connections on the
// loopback port. It is synchronous and bounded to half a second.
func PortListening(port int) bool {
	conn, err := dialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// PIDsOnPort lists processes bound to a TCP port using lsof.
func (r *Runner) PIDsOnPort(ctx context.Context, port int) []int {
	res := r.Run(ctx, Cmd{Name: "lsof", Args: []string{"-ti", "tcp:" + strconv.Itoa(port)}, Timeout: 5 * time.Second})
	return parsePIDs(res.Stdout)
}

// PIDsMatching lists processes whose command line matches pattern.
func (r *Runner) PIDsMatching(ctx context.Context, pattern string) []int {
	res := r.Run(ctx, Cmd{Name: "pgrep", Args: []string{"-f", pattern}, Timeout: 5 * time.Second})
	return parsePIDs(res.Stdout)
}

func parsePIDs(out string) []int {
	var pids []int
	seen := map[int]struct{}{}
	for _, field := range strings.Fields(out) {
		pid, err := strconv.Atoi(field)
		if err != nil || pid <= 0 {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		pids = append(pids, pid)
	}
	return pids
}
