package utils

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// DiffUint32 returns the elements of a that are not in b, preserving order.
func DiffUint32(a, b []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(b))
	for _, v := range b {
		seen[v] = struct{}{}
	}
	var out []uint32
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// IntersectUint32 returns the elements present in both a and b, in a's order.
func IntersectUint32(a, b []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(b))
	for _, v := range b {
		seen[v] = struct{}{}
	}
	var out []uint32
	for _, v := range a {
		if _, ok := seen[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
