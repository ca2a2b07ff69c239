// File: netconfig/netconfig.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Default tunables for netasync's framed transports, mirroring the
// default constructor arguments original_source's ServiceClient,
// ServiceServer, and DatagramReceiver ship with. No package in this
// module imports netconfig: serviceclient.New, serviceserver.New,
// datagramio.NewReceiver and serviceserver's Advertise take these
// values as required arguments and apply no default of their own.
package netconfig

import "time"

const (
	// DefaultMaxMessageSize is the conventional maxMessageSize argument
	// for serviceclient.New, serviceserver.New and
	// datagramio.NewReceiver.
	DefaultMaxMessageSize = 512

	// DefaultReceiveTimeout is the conventional receiveTimeout argument
	// for serviceserver's Advertise (per-connection request read).
	DefaultReceiveTimeout = 60 * time.Second

	// DefaultSendTimeout is the conventional sendTimeout argument for
	// serviceserver's Advertise (per-connection response write).
	DefaultSendTimeout = 10 * time.Second
)
