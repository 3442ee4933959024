package room

import (
	"hash/fnv"
	"sort"
)

// deterministicHash is a fixed integer function of deviceId's bytes. Its
// only job is a stable tiebreaker in election; any peer computing it for
// the same deviceId must get the same value, which FNV-1a guarantees
// without needing a cryptographic hash.
func deterministicHash(id DeviceId) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id)) // hash.Hash.Write never errors
	return h.Sum64()
}

// Elect returns the deviceId that should become host, given a member list
// and the deviceId of the host that was just lost (empty if none). The
// lost host is pruned from the input before sorting, then members are
// ordered (joinOrder asc, deterministicHash(deviceId) asc) and the first
// survivor wins. Returns false if no member remains after pruning.
func Elect(members []Member, lostHostDeviceId DeviceId) (DeviceId, bool) {
	survivors := make([]Member, 0, len(members))
	for _, m := range members {
		if lostHostDeviceId != "" && m.DeviceId == lostHostDeviceId {
			continue
		}
		survivors = append(survivors, m)
	}
	if len(survivors) == 0 {
		return "", false
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].JoinOrder != survivors[j].JoinOrder {
			return survivors[i].JoinOrder < survivors[j].JoinOrder
		}
		return deterministicHash(survivors[i].DeviceId) < deterministicHash(survivors[j].DeviceId)
	})

	return survivors[0].DeviceId, true
}
