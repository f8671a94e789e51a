// Command scholargate runs the same-origin gateway in front of the
// repository API and offers a small client for checking it.
//
// Subcommands:
//
//	serve             run the gateway (configured from the environment)
//	session status    fetch a CSRF token and report the session status
//	session probe     log in, confirm the session and log out
//
// Configuration comes from environment variables, optionally layered over a
// YAML file named by GATEWAY_CONFIG_FILE.
package main
