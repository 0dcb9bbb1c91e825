package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the burn/native-currency sentinel address.
var ZeroAddress = common.Address{}

// ParseAddress validates and normalizes a hex address from user input.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// IsZero reports whether addr is the zero address.
func IsZero(addr common.Address) bool {
	return addr == ZeroAddress
}

// Hex renders an address in its lowercase canonical form, the form
// every store and API response uses.
func Hex(addr common.Address) string {
	return "0x" + fmt.Sprintf("%x", addr.Bytes())
}
