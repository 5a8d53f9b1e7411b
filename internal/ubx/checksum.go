package ubx

// Checksum computes the UBX 8-bit Fletcher checksum over data and returns it
// as CK_A<<8 | CK_B.
//
// The span is everything between the sync bytes and the checksum itself:
// class, id, the two length bytes and the payload.
func Checksum(data []byte) uint16 {
	ckA, ckB := ChecksumBytes(data)
	return uint16(ckA)<<8 | uint16(ckB)
}

// ChecksumBytes returns the two accumulators in wire order.
func ChecksumBytes(data []byte) (ckA, ckB uint8) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}
