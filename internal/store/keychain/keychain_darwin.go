//go:build darwin

package keychain

import (
	"errors"

	"github.com/keybase/go-keychain"
)

func init() {
	platform = &macStore{}
}

// macStore files items in the macOS login Keychain
type macStore struct{}

func (m *macStore) Get(service, account string) ([]byte, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(service)
	query.SetAccount(account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		if errors.Is(err, keychain.ErrorItemNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if len(results) == 0 {
		return nil, errNotFound
	}
	return results[0].Data, nil
}

// Set adds the item, updating it in place if it already exists
func (m *macStore) Set(service, account string, data []byte) error {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(service)
	item.SetAccount(account)
	item.SetLabel(service + " - " + account)
	item.SetData(data)
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	err := keychain.AddItem(item)
	if errors.Is(err, keychain.ErrorDuplicateItem) {
		query := keychain.NewItem()
		query.SetSecClass(keychain.SecClassGenericPassword)
		query.SetService(service)
		query.SetAccount(account)

		update := keychain.NewItem()
		update.SetData(data)
		return keychain.UpdateItem(query, update)
	}
	return err
}

func (m *macStore) Delete(service, account string) error {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(service)
	item.SetAccount(account)

	err := keychain.DeleteItem(item)
	if errors.Is(err, keychain.ErrorItemNotFound) {
		return errNotFound
	}
	return err
}

func (m *macStore) IsSupported() bool {
	return true
}
