// Package netagent is a multi-agent operations core for network
// infrastructure: natural-language requests are routed to per-device
// and per-service agents that execute device commands, query and change
// CMDB records, work tickets, describe images, and send email.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/automateyournetwork/netagent/cmd/netagent@latest
//
// Describe your devices in a testbed file:
//
//	devices:
//	  R1:
//	    os: linux
//	    host: 10.0.0.11
//	    username: ${DEVICE_USERNAME}
//	    password: ${DEVICE_PASSWORD}
//	    supported_commands:
//	      - ifconfig
//	      - ifconfig {interface}
//
// Bind agents to devices and services in config.yaml, then:
//
//	netagent serve --config config.yaml
//	netagent ask "R1: is eth0 up?"
//
// Requests prefixed with an agent name ("R1: ...") dispatch straight to
// that agent; anything else goes through a top-level reasoning loop
// that delegates across all registered agents.
//
// # Using as a Go Library
//
// The composition root is pkg/runtime:
//
//	import (
//	    "github.com/automateyournetwork/netagent/pkg/config"
//	    "github.com/automateyournetwork/netagent/pkg/runtime"
//	)
//
// Device transports are injected; the repository ships none. Wire in
// SSH, telnet, or a simulator with runtime.WithTransportFactory.
package netagent
