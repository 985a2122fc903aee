//go:build linux

package frame

func newPlatformStore(n int) (Store, error) {
	return NewMemfdStore(n)
}
