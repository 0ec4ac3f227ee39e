package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Integer register numbers with a fixed role in the calling convention.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
	RegGP   uint8 = 3
	RegTP   uint8 = 4
	RegA0   uint8 = 10
	RegA1   uint8 = 11
	RegA2   uint8 = 12
	RegA7   uint8 = 17
)

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of integer register r.
func RegName(r uint8) string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("x%d", r)
}

// ParseReg accepts an ABI name ("a0", "fp") or an architectural name ("x10").
func ParseReg(name string) (uint8, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "fp" {
		return 8, nil
	}
	for i, n := range regNames {
		if n == name {
			return uint8(i), nil
		}
	}
	if strings.HasPrefix(name, "x") {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 0 && n < 32 {
			return uint8(n), nil
		}
	}
	return 0, fmt.Errorf("insts: unknown register %q", name)
}
