// protobridge-version prints the compiled-in protocol version so packaging
// and provisioning scripts can query it without starting a node.
// Pass -q to print only the number.
package main

import (
	"flag"
	"fmt"

	"github.com/osu-uwrt/riptide-fw-bridge/pkg/protocol"
)

func main() {
	quiet := flag.Bool("q", false, "print only the protocol version")
	flag.Parse()

	if *quiet {
		fmt.Println(protocol.ProtocolVersion)
		return
	}
	fmt.Printf("Protobridge Protocol Version: %d\n", protocol.ProtocolVersion)
}
