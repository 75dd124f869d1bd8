package remote

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Flag is a status field that services send either as a JSON bool or as a
// string such as "True".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = Flag(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

// Detail is a human readable failure description. Services send it as a
// plain string or nested inside an object ({"detail": {"detail": "..."}}).
type Detail string

func (d *Detail) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Detail(s)
		return nil
	}
	var nested struct {
		Detail  Detail `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &nested); err == nil {
		if nested.Detail != "" {
			*d = nested.Detail
			return nil
		}
		if nested.Message != "" {
			*d = Detail(nested.Message)
			return nil
		}
	}
	*d = Detail(data)
	return nil
}

// Envelope carries the status/detail pair every service response shares.
type Envelope struct {
	Status  Flag   `json:"status"`
	Detail  Detail `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

// Reason returns the best failure description the envelope holds.
func (e Envelope) Reason() string {
	if e.Detail != "" {
		return string(e.Detail)
	}
	return e.Message
}
