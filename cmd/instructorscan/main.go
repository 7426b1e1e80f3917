package main

import (
	"instructorscan-backend/cmd/instructorscan/commands"
	"instructorscan-backend/lib/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	commands.ExecuteContext(ctx)
}
