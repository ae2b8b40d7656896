// mlp-server: evaluates a network's first layer on encrypted inputs read
// from stdin, answering on stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"mlp_lib/persist"
	"mlp_lib/split"
	"mlp_lib/utils"
)

var (
	networkFile = flag.String("network", "network.bin", "Saved network; only its first layer is used")
	arch        = flag.String("arch", "", "Layer sizes of a .raw network, e.g. \"784 30 10\"")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	utils.Output = os.Stderr

	shape, err := parseArch(*arch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	net, err := persist.LoadNetwork(*networkFile, shape)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading network: %v\n", err)
		os.Exit(1)
	}

	server, err := split.NewServer(net, split.NewProtocol(os.Stdin, os.Stdout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	utils.Logf("SERVER", "serving %d -> %d, waiting for client...", server.InputSize(), server.OutputSize())

	if err := server.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArch(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	return utils.ParseArchitecture(s)
}
