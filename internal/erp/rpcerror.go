package erp

import (
	"errors"
	"strings"
)

// ErrAuthenticationFailed is returned when the ERP rejects credentials.
var ErrAuthenticationFailed = errors.New("erp authentication failed")

// RPCError carries the remote fault payload of a failed call.
type RPCError struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    FaultData `json:"data"`
}

// FaultData is the server-side exception detail attached to a fault.
type FaultData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug"`
}

func (e *RPCError) Error() string {
	if e.Data.Message != "" {
		return "erp rpc: " + e.Data.Message
	}
	return "erp rpc: " + e.Message
}

// IsAccessDenied reports whether err is a remote access-denied / expired
// session fault. The client invalidates its cached session on these.
func IsAccessDenied(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	if strings.HasSuffix(rpcErr.Data.Name, "AccessDenied") {
		return true
	}
	msg := strings.ToLower(rpcErr.Data.Message + " " + rpcErr.Message)
	return strings.Contains(msg, "access denied") || strings.Contains(msg, "session expired")
}
