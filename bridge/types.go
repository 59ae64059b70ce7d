package bridge

import "fmt"

// APIError is the problem+json body a VIIPER host answers with on failure.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e APIError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// ErrUnauthorized is returned when the host rejects the configured password.
func ErrUnauthorized(detail string) *APIError {
	return &APIError{Status: 401, Title: "Unauthorized", Detail: detail}
}

// StatusConflict is reported by bus/create for a bus number already in use.
const StatusConflict = 409

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

type BusCreateResponse struct {
	BusID uint32 `json:"busId"`
}

type Device struct {
	BusID uint32 `json:"busId"`
	DevID string `json:"devId"`
	Vid   string `json:"vid"`
	Pid   string `json:"pid"`
	Type  string `json:"type"`
}

type DeviceRemoveResponse struct {
	BusID uint32 `json:"busId"`
	DevID string `json:"devId"`
}

type deviceCreateRequest struct {
	Type string `json:"type"`
}
