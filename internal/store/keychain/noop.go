package keychain

// noopStore is used on platforms without a secret store
type noopStore struct{}

func (n *noopStore) Get(service, account string) ([]byte, error) {
	return nil, ErrNotSupported
}

func (n *noopStore) Set(service, account string, data []byte) error {
	return ErrNotSupported
}

func (n *noopStore) Delete(service, account string) error {
	return ErrNotSupported
}

func (n *noopStore) IsSupported() bool {
	return false
}
