// Package fragment manages fragment metadata: requests, approval, secret
// verification, and activity tracking.
package fragment

import "time"

// Metadata describes one fragment's registration state. The JSON field names
// are part of the on-disk format and must not change.
type Metadata struct {
	Reason     string     `json:"reason"`
	OriginalIP string     `json:"originalIP"`
	KnownIPs   []string   `json:"knownIPs"`
	SecretHash string     `json:"secret"`
	Created    time.Time  `json:"created"`
	Approved   bool       `json:"approved"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

// clone returns a deep copy so callers can't mutate registry state.
func (m *Metadata) clone() Metadata {
	out := *m
	out.KnownIPs = append([]string(nil), m.KnownIPs...)
	if m.LastUpdate != nil {
		lu := *m.LastUpdate
		out.LastUpdate = &lu
	}
	return out
}

// knowsIP reports whether ip is already recorded for this fragment.
func (m *Metadata) knowsIP(ip string) bool {
	for _, known := range m.KnownIPs {
		if known == ip {
			return true
		}
	}
	return false
}
