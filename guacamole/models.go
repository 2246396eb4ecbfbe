package guacamole

import (
	"encoding/json"
	"strconv"
	"time"
)

// ProtocolSSH is the protocol name Guacamole uses for SSH connections.
const ProtocolSSH = "ssh"

// RootGroup is the identifier of the root connection group.
const RootGroup = "ROOT"

// ConnectionNamePrefix prefixes generated SSH connection names.
const ConnectionNamePrefix = "SSH_Connection_"

// Connection attribute names.
const (
	AttrMaxConnections        = "max-connections"
	AttrMaxConnectionsPerUser = "max-connections-per-user"
)

// Session is the result of a successful token request.
type Session struct {
	Token                string   `json:"authToken"`
	Username             string   `json:"username"`
	DataSource           string   `json:"dataSource"`
	AvailableDataSources []string `json:"availableDataSources,omitempty"`
}

// Connection is a connection definition stored by the broker.
type Connection struct {
	// Identifier is assigned by the broker on creation.
	Identifier       string `json:"identifier,omitempty"`
	ParentIdentifier string `json:"parentIdentifier,omitempty"`
	Name             string `json:"name"`
	Protocol         string `json:"protocol"`

	// Parameters are only returned by the parameters endpoint; listings
	// and single-connection reads leave them empty.
	Parameters map[string]string `json:"parameters,omitempty"`

	// Attributes map to JSON null when unset.
	Attributes map[string]*string `json:"attributes,omitempty"`

	ActiveConnections int   `json:"activeConnections,omitempty"`
	LastActive        int64 `json:"lastActive,omitempty"` // Unix millis

	// Body is the entry exactly as listed, including fields not modeled
	// above. Only set by ListConnections.
	Body json.RawMessage `json:"-"`
}

// LastActiveTime returns LastActive as a time, or the zero time if unset.
func (c *Connection) LastActiveTime() time.Time {
	if c.LastActive == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.LastActive)
}

// SSHParameters are the protocol parameters of an SSH connection.
type SSHParameters struct {
	Hostname string
	Port     int
	Username string

	// Password is sent even when empty so the broker prompts for it.
	Password string

	// PrivateKey is a PEM encoded key; Passphrase decrypts it.
	PrivateKey string
	Passphrase string

	// HostKey pins the server's public key in authorized_keys format.
	HostKey string
}

// Map converts the parameters to the broker's string map.
func (p SSHParameters) Map() map[string]string {
	port := p.Port
	if port == 0 {
		port = 22
	}

	m := map[string]string{
		"hostname": p.Hostname,
		"port":     strconv.Itoa(port),
		"username": p.Username,
		"password": p.Password,
	}
	if p.PrivateKey != "" {
		m["private-key"] = p.PrivateKey
	}
	if p.Passphrase != "" {
		m["passphrase"] = p.Passphrase
	}
	if p.HostKey != "" {
		m["host-key"] = p.HostKey
	}
	return m
}

// NewSSHConnection builds the creation payload for an SSH connection in the
// root group with unlimited concurrent use.
func NewSSHConnection(name string, params SSHParameters) *Connection {
	return &Connection{
		ParentIdentifier: RootGroup,
		Name:             name,
		Protocol:         ProtocolSSH,
		Parameters:       params.Map(),
		Attributes: map[string]*string{
			AttrMaxConnections:        nil,
			AttrMaxConnectionsPerUser: nil,
		},
	}
}

// ConnectionName returns the per-run unique connection name for t.
func ConnectionName(t time.Time) string {
	return ConnectionNamePrefix + strconv.FormatInt(t.Unix(), 10)
}

// TunnelRequest asks the broker to open an active session.
type TunnelRequest struct {
	ConnectionID string            `json:"connectionID"`
	Protocol     string            `json:"protocol"`
	Parameters   map[string]string `json:"parameters"`
}

// Tunnel is the broker's description of an opened tunnel. Its shape is
// broker specific and kept as decoded JSON.
type Tunnel map[string]any
