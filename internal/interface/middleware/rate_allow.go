package middleware

import (
	"net"

	"github.com/gin-gonic/gin"
)

// AllowPrivateIP bypasses the limiter for loopback and RFC 1918 / ULA clients.
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		ip := net.ParseIP(ipFromCtx(c))
		return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
	}
}

// AllowCIDRs bypasses the limiter for clients inside any of the given networks.
// Entries that do not parse as CIDR or as a single address are ignored.
func AllowCIDRs(cidrs []string) AllowFunc {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, s := range cidrs {
		if _, n, err := net.ParseCIDR(s); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(s); ip != nil {
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	if len(nets) == 0 {
		return nil
	}
	return func(c *gin.Context) bool {
		ip := net.ParseIP(ipFromCtx(c))
		if ip == nil {
			return false
		}
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}
}

// AnyAllow combines allow funcs; nil entries are skipped. It returns nil when none remain.
func AnyAllow(fns ...AllowFunc) AllowFunc {
	kept := make([]AllowFunc, 0, len(fns))
	for _, fn := range fns {
		if fn != nil {
			kept = append(kept, fn)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return func(c *gin.Context) bool {
		for _, fn := range kept {
			if fn(c) {
				return true
			}
		}
		return false
	}
}
