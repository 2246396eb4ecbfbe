package guacamole

import (
	"encoding/base64"
	"strings"
)

// ClientType is the kind of object a client identifier refers to.
type ClientType string

// Client identifier types understood by the Guacamole web UI.
const (
	TypeConnection       ClientType = "c"
	TypeConnectionGroup  ClientType = "g"
	TypeActiveConnection ClientType = "a"
)

// ClientIdentifier addresses an object in the web UI's /#/client/ route.
type ClientIdentifier struct {
	ID         string
	Type       ClientType
	DataSource string
}

// Encode returns base64 of "ID\0Type\0DataSource\0".
func (ci ClientIdentifier) Encode() string {
	raw := ci.ID + "\x00" + string(ci.Type) + "\x00" + ci.DataSource + "\x00"
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// ParseClientIdentifier decodes an encoded client identifier.
// The trailing separator is optional.
func ParseClientIdentifier(encoded string) (ClientIdentifier, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ClientIdentifier{}, ErrClientIdentifierInvalid
	}

	parts := strings.Split(strings.TrimSuffix(string(raw), "\x00"), "\x00")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return ClientIdentifier{}, ErrClientIdentifierInvalid
	}

	return ClientIdentifier{
		ID:         parts[0],
		Type:       ClientType(parts[1]),
		DataSource: parts[2],
	}, nil
}

// BuildDeepLink returns the web UI URL that opens connection id directly.
func BuildDeepLink(baseURL, id, dataSource string) string {
	ci := ClientIdentifier{ID: id, Type: TypeConnection, DataSource: dataSource}
	return strings.TrimSuffix(baseURL, "/") + "/#/client/" + ci.Encode()
}

// BuildDashboardURL returns the web UI home page.
func BuildDashboardURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/#/"
}
