// protobridge-node terminates firmware protobuf channels and bridges them
// to the topic and parameter handlers.
package main

import "os"

func main() {
	os.Exit(run(ParseFlags(os.Args[1:])))
}
