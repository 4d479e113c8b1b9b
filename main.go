// Wayfinder - shortest-path wayfinding over indoor floor plans.
//
// Wayfinder imports floor-plan graphs of named locations and walkable
// connections, and answers "how do I get from A to B" with the shortest
// route as an alternating list of locations and connections.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/wayfinder-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
