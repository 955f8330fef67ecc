package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyKind discriminates the two namespaces of the volatile key store.
type KeyKind uint8

const (
	KeyKindFragment KeyKind = iota + 1
	KeyKindAddress
)

const (
	fragmentKeyPrefix = "keypart:"
	addressKeyPrefix  = "address:"
)

// KeyFragmentTTL bounds how long volatile key material survives.
const KeyFragmentTTL = 30 * 24 * time.Hour

// KeyID identifies an entry in the volatile key store: either fragment i of
// the master key or the key of a single receiving address.
type KeyID struct {
	kind    KeyKind
	index   int
	address string
}

// FragmentKeyID returns the id of master key fragment i.
func FragmentKeyID(i int) KeyID {
	return KeyID{kind: KeyKindFragment, index: i}
}

// AddressKeyID returns the id of the key owned by address.
func AddressKeyID(address string) KeyID {
	return KeyID{kind: KeyKindAddress, address: address}
}

func (k KeyID) Kind() KeyKind   { return k.kind }
func (k KeyID) Index() int      { return k.index }
func (k KeyID) Address() string { return k.address }

// IsZero returns true for the zero value, which names no entry.
func (k KeyID) IsZero() bool {
	return k.kind == 0
}

// String renders the storage key.
func (k KeyID) String() string {
	switch k.kind {
	case KeyKindFragment:
		return fragmentKeyPrefix + strconv.Itoa(k.index)
	case KeyKindAddress:
		return addressKeyPrefix + k.address
	default:
		return ""
	}
}

// ParseKeyID is the inverse of KeyID.String.
func ParseKeyID(s string) (KeyID, error) {
	switch {
	case strings.HasPrefix(s, fragmentKeyPrefix):
		i, err := strconv.Atoi(strings.TrimPrefix(s, fragmentKeyPrefix))
		if err != nil || i < 0 {
			return KeyID{}, fmt.Errorf("invalid fragment key id %q", s)
		}
		return FragmentKeyID(i), nil
	case strings.HasPrefix(s, addressKeyPrefix):
		addr := strings.TrimPrefix(s, addressKeyPrefix)
		if addr == "" {
			return KeyID{}, fmt.Errorf("invalid address key id %q", s)
		}
		return AddressKeyID(addr), nil
	}
	return KeyID{}, fmt.Errorf("unknown key id %q", s)
}

// KeyPart is the durable copy of master key fragment 0.
type KeyPart struct {
	Index         int       `json:"index"`
	EncryptedPart string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
