package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Relay/authority layer.
	ErrNoAuthority  = "E_NO_AUTHORITY"
	ErrUnknownKind  = "E_UNKNOWN_KIND"
	ErrBadPayload   = "E_BAD_PAYLOAD"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrNotFound     = "E_NOT_FOUND"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNoAuthority:     {},
	ErrUnknownKind:     {},
	ErrBadPayload:      {},
	ErrNoPermission:    {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
