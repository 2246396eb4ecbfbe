// Package guacamole provides a client for the Apache Guacamole REST API.
//
// The client covers the subset needed to provision SSH connections:
// token authentication, connection creation, lookup and listing, tunnel
// tests, and client deep links.
//
// # Authentication
//
// Guacamole issues an opaque session token in exchange for a username and
// password. Every other call carries the token in the Guacamole-Token header.
// Tokens expire server-side; the client does not renew them.
//
// # Usage
//
//	cfg := guacamole.DefaultConfig()
//	cfg.URL = "http://broker.example.com:8080/guacamole"
//	cfg.Auth.Username = "guacadmin"
//	cfg.Auth.Password = os.Getenv("GUACAMOLE_PASSWORD")
//
//	client, err := guacamole.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//
//	session, err := client.Login(ctx)
//	if err != nil {
//		return err
//	}
//
//	conn, err := client.CreateConnection(ctx, session.Token,
//		guacamole.NewSSHConnection(guacamole.ConnectionName(time.Now()), params))
//
//	fmt.Println(client.DeepLink(conn.Identifier))
//
// # Error Handling
//
// Failures are reported with guaclink/http error types. A request that never
// produced a response is an *http.TransportError; a response with an
// unexpected status is an *http.APIError. Use errors.Is to check conditions:
//
//	if errors.Is(err, guacamole.ErrConnectionNotFound) {
//		// Connection does not exist (yet)
//	}
//	if errors.Is(err, guacamole.ErrAuthenticationFailed) {
//		// Credentials rejected
//	}
package guacamole
