package transform

import "strings"

// AddressComponents holds the parts extracted from a free-text address.
// All fields are nullable; parsing is best-effort and never fails.
type AddressComponents struct {
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
}

// ParseAddress splits a free-text address of the form
// "<street>, <city>, <state> <zip>" into its components. Inputs with
// fewer than three comma-separated segments keep the whole string as
// the street address. Empty input returns an all-null result.
func ParseAddress(address string) AddressComponents {
	if address == "" {
		return AddressComponents{}
	}

	parts := strings.Split(address, ", ")
	if len(parts) < 3 {
		street := address
		return AddressComponents{StreetAddress: &street}
	}

	street := parts[0]
	city := parts[1]
	out := AddressComponents{
		StreetAddress: &street,
		City:          &city,
	}

	stateZip := strings.Split(parts[2], " ")
	if len(stateZip) > 0 && stateZip[0] != "" {
		state := stateZip[0]
		out.State = &state
	}
	if len(stateZip) > 1 {
		zip := stateZip[1]
		out.ZipCode = &zip
	}

	return out
}
