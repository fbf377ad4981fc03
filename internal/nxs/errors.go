package nxs

import "fmt"

func errOutOfOrder(txID, want, got uint32) error {
	return fmt.Errorf("nxs: transaction %d: out-of-order item seq (want %d, got %d)", txID, want, got)
}

func errTooManyItems(txID uint32) error {
	return fmt.Errorf("nxs: transaction %d: exceeds request-list cap of %d items", txID, MaxRequestItems)
}
