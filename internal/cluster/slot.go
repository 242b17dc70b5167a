package cluster

import "strings"

// SlotCount is the size of the Redis Cluster hash space.
const SlotCount = 16384

// SlotOf computes the cluster hash slot for a routing key, honoring the
// {tag} sub-key convention: a well-formed non-empty {tag} replaces the
// whole key as the hashing input so multi-key operations on co-located
// keys remain routable to the same node.
func SlotOf(key string) uint16 {
	return crc16(hashInput(key)) & (SlotCount - 1)
}

// hashInput returns the substring of key that should actually be hashed:
// the bytes strictly between the first '{' and the first '}' after it, if
// that substring is non-empty; otherwise the whole key.
func hashInput(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}

// crc16 computes CRC16-CCITT (polynomial 0x1021, initial 0, non-reflected)
// as used by the Redis Cluster spec.
func crc16(data string) uint16 {
	var crc uint16
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
