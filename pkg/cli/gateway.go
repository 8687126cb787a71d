package cli

// loopbackAddresses are the bind addresses ApplyGatewayPorts treats as
// already loopback-only and therefore leaves untouched.
var loopbackAddresses = map[string]bool{
	"":          true,
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// ApplyGatewayPorts enforces the ssf.services.{streamListener,datagramListener}.gatewayPorts
// policy on a parsed bind address: when allowed is false, any address other
// than loopback is silently replaced with an empty bind address (loopback),
// matching spec.md §6's description of gatewayPorts as a policy enforced at
// the CLI boundary rather than inside the forwarding microservices
// themselves, which bind whatever address they are given.
func ApplyGatewayPorts(bindAddress string, allowed bool) string {
	if allowed || loopbackAddresses[bindAddress] {
		return bindAddress
	}
	return ""
}
