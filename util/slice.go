package util

func Contains[T comparable](in []T, v T) bool {
	for _, e := range in {
		if e == v {
			return true
		}
	}
	return false
}
