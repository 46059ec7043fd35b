//go:build !linux

package system

// SetProcessName is not supported off Linux; argv[0] is the only name a
// replaced image can carry there.
func SetProcessName(string) error {
	return nil
}
