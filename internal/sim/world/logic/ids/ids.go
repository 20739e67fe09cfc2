package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// PlayerID is the handle of the single player holder.
const PlayerID = "PLAYER"

const (
	customerPrefix = "C"
	machinePrefix  = "M"
)

func CustomerID(n uint64) string { return fmt.Sprintf("%s%06d", customerPrefix, n) }
func MachineID(n uint64) string  { return fmt.Sprintf("%s%06d", machinePrefix, n) }

func IsCustomerID(id string) bool {
	_, ok := ParseUintAfterPrefix(customerPrefix, id)
	return ok
}

func IsMachineID(id string) bool {
	_, ok := ParseUintAfterPrefix(machinePrefix, id)
	return ok
}

func ParseCustomerNum(id string) (uint64, bool) { return ParseUintAfterPrefix(customerPrefix, id) }
func ParseMachineNum(id string) (uint64, bool)  { return ParseUintAfterPrefix(machinePrefix, id) }

func MaxU64(a, b uint64) uint64 {
	if a >= b {
		return a
	}
	return b
}

func ParseUintAfterPrefix(prefix, id string) (uint64, bool) {
	if !strings.HasPrefix(id, prefix) || len(id) == len(prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(id[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
