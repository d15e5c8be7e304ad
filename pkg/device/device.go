// Package device turns request headers into the provenance stored on sessions
// and audit entries.
package device

import (
	"net"
	"strings"

	"github.com/mssola/useragent"
)

const Unknown = "unknown"

// Describe renders a user agent as "{OS} {version} - {Browser} {version}",
// dropping whatever the agent does not reveal.
func Describe(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return Unknown
	}

	ua := useragent.New(userAgent)
	osInfo := ua.OSInfo()
	browser, version := ua.Browser()

	os := join(" ", osInfo.Name, osInfo.Version)
	br := join(" ", browser, version)
	if d := join(" - ", os, br); d != "" {
		return d
	}
	return Unknown
}

// ClientIP picks the caller address: first X-Forwarded-For hop, then
// X-Real-IP, then the socket peer, then "unknown".
func ClientIP(forwardedFor, realIP, remote string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return ip
	}
	if remote != "" {
		if host, _, err := net.SplitHostPort(remote); err == nil {
			return host
		}
		return remote
	}
	return Unknown
}

func join(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
