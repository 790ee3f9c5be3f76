//go:build windows

package daemon

// deviceID is not available on windows; every path reports device 0.
func deviceID(path string) (uint64, error) {
	return 0, nil
}
