// Package provision runs the connection lifecycle against a broker.
//
// A run authenticates, resolves the address the SSH connection should
// point at, creates the connection, waits until the broker serves it,
// locates it by name and produces a deep link:
//
//	Unauthenticated -> Authenticated -> Created -> Verified -> Located -> Linked
//
// A failure stops the run at the last stage reached. No broker call is made
// after a failure except the logout of an authenticated session.
//
// # Usage
//
//	runner := provision.NewRunner(client, provision.Options{
//	    Username: "guacadmin",
//	    Password: password,
//	    SSH:      guacamole.SSHParameters{Port: 22, Username: "deploy"},
//	}, provision.WithNotifier(notifier))
//
//	result, err := runner.Run(ctx)
//	if err != nil {
//	    fmt.Println("Dashboard:", result.DashboardURL)
//	    return err
//	}
//	fmt.Println(result.DeepLink)
package provision
