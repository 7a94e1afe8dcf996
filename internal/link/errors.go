package link

import "errors"

var (
	// ErrInvalidPolicy is returned for an unrecognised retry policy name.
	ErrInvalidPolicy = errors.New("link: invalid retry policy")

	// ErrNoAddress is reported when an interface has no usable IPv4 address.
	ErrNoAddress = errors.New("link: no IPv4 address")

	// ErrInvalidSSID is returned for an empty or over-long network name.
	ErrInvalidSSID = errors.New("link: invalid ssid")

	// ErrInvalidPassphrase is returned for a passphrase outside 8..63 printable ASCII characters.
	ErrInvalidPassphrase = errors.New("link: invalid passphrase")

	// ErrStationClosed is returned by stations used after Close.
	ErrStationClosed = errors.New("link: station closed")
)
