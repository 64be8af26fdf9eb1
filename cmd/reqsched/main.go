// Command reqsched is the process entrypoint: a thin main that hands off
// to the cobra root command in package cmd.
package main

import "github.com/nlbx/reqsched/cmd"

func main() {
	cmd.Execute()
}
