package library

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

const (
	pubKeyLength   = 32
	checksumLength = 2
)

// NetworkAddressFromString decodes an SS58 chain address and returns it together with its public key.
func NetworkAddressFromString(address string) (NetworkAddress, error) {
	raw := base58.Decode(address)
	var prefixLength int
	switch len(raw) {
	case 1 + pubKeyLength + checksumLength:
		prefixLength = 1
	case 2 + pubKeyLength + checksumLength:
		prefixLength = 2
	default:
		return NetworkAddress{}, fmt.Errorf("%w: address %q has unexpected length", ErrInvalidMessage, address)
	}
	// one byte prefixes are below 64, the first of two bytes is in 64..127
	if (prefixLength == 1 && raw[0] >= 64) || (prefixLength == 2 && (raw[0] < 64 || raw[0] >= 128)) {
		return NetworkAddress{}, fmt.Errorf("%w: address %q has a malformed network prefix", ErrInvalidMessage, address)
	}
	body := raw[:len(raw)-checksumLength]
	if !bytes.Equal(ss58Checksum(body), raw[len(raw)-checksumLength:]) {
		return NetworkAddress{}, fmt.Errorf("%w: address %q has a bad checksum", ErrInvalidMessage, address)
	}
	return NetworkAddress{
		Address: NetAccount(address),
		PubKey:  PubKey(hex.EncodeToString(body[prefixLength:])),
	}, nil
}

// EncodeAddress builds the SS58 address of a 32 byte public key for the given network.
func EncodeAddress(network uint16, pubKey []byte) (NetAccount, error) {
	if len(pubKey) != pubKeyLength {
		return "", fmt.Errorf("public key must be %d bytes, got %d", pubKeyLength, len(pubKey))
	}
	var body []byte
	switch {
	case network < 64:
		body = []byte{byte(network)}
	case network < 16384:
		first := byte((network&0xfc)>>2) | 0x40
		second := byte(network>>8) | byte((network&0x03)<<6)
		body = []byte{first, second}
	default:
		return "", fmt.Errorf("network prefix %d out of range", network)
	}
	body = append(body, pubKey...)
	body = append(body, ss58Checksum(body)...)
	return NetAccount(base58.Encode(body)), nil
}

func ss58Checksum(body []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(body)
	return h.Sum(nil)[:checksumLength]
}
