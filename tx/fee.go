package tx

// EstimateFee calculates the fee for a transaction of the given size.
// feeRate is in satoshis per kilobyte; zero selects DefaultFeeRate.
func EstimateFee(txSizeBytes int, feeRate uint64) uint64 {
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	fee := uint64(txSizeBytes) * feeRate
	// Ceiling division by 1000
	return (fee + 999) / 1000
}

// inputSize: prevhash(32) + previndex(4) + scriptlen varint + script + sequence(4).
func inputSize(unlockLen int) int {
	return 32 + 4 + varIntLen(unlockLen) + unlockLen + 4
}

// outputSize: value(8) + scriptlen varint + script.
func outputSize(scriptLen int) int {
	return 8 + varIntLen(scriptLen) + scriptLen
}

func varIntLen(n int) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case int64(n) <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
