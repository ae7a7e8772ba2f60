package contexthub

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a transaction. It is used for labelling only.
type Kind int

const (
	KindLoad Kind = iota + 1
	KindUnload
	KindQuery
)

// String returns the kind in title case ("Load", "Unload", "Query").
func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "Load"
	case KindUnload:
		return "Unload"
	case KindQuery:
		return "Query"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Upper returns the kind in upper case, the form used in failure messages.
func (k Kind) Upper() string {
	return strings.ToUpper(k.String())
}

// Label returns the lower case kind, used for metric labels and storage.
func (k Kind) Label() string {
	return strings.ToLower(k.String())
}

// ParseKind is the inverse of Kind.Label.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "load":
		return KindLoad, nil
	case "unload":
		return KindUnload, nil
	case "query":
		return KindQuery, nil
	}
	return 0, fmt.Errorf("unknown transaction kind %q", s)
}

// Transaction result codes reported by the hub.
const (
	ResultSuccess               int32 = 0
	ResultFailedUnknown         int32 = 1
	ResultFailedBadParams       int32 = 2
	ResultFailedUninitialized   int32 = 3
	ResultFailedBusy            int32 = 4
	ResultFailedAtHub           int32 = 5
	ResultFailedTimeout         int32 = 6
	ResultFailedServiceInternal int32 = 7
	ResultFailedHALUnavailable  int32 = 8
)

var resultNames = map[int32]string{
	ResultSuccess:               "SUCCESS",
	ResultFailedUnknown:         "FAILED_UNKNOWN",
	ResultFailedBadParams:       "FAILED_BAD_PARAMS",
	ResultFailedUninitialized:   "FAILED_UNINITIALIZED",
	ResultFailedBusy:            "FAILED_BUSY",
	ResultFailedAtHub:           "FAILED_AT_HUB",
	ResultFailedTimeout:         "FAILED_TIMEOUT",
	ResultFailedServiceInternal: "FAILED_SERVICE_INTERNAL_FAILURE",
	ResultFailedHALUnavailable:  "FAILED_HAL_UNAVAILABLE",
}

// ResultString names a result code. Unknown codes are printed numerically.
func ResultString(code int32) string {
	if name, ok := resultNames[code]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(%d)", code)
}

// HubInfo identifies the hub a transaction targets.
type HubInfo struct {
	ID   int32
	Name string
}

// NanoAppState is one entry of a query response.
type NanoAppState struct {
	ID      uint64 `json:"id"`
	Version uint32 `json:"version"`
	Enabled bool   `json:"enabled"`
}

// String formats the state with a hex app ID.
func (s NanoAppState) String() string {
	return fmt.Sprintf("0x%x@%d", s.ID, s.Version)
}
