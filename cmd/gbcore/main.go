package main

import (
	"os"
)

func main() {
	ctx, globals := parseArgs(os.Args[1:])
	checkf(ctx.Run(globals), "%s", ctx.Command())
}
