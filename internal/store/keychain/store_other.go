//go:build !darwin

package keychain

func init() {
	platform = &noopStore{}
}
