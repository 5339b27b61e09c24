package main

import (
	"os"

	"evcs-harvester/cmd/evcs-harvester/commands"
	"evcs-harvester/lib/serviceutil"
	"evcs-harvester/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(os.Getenv("VERBOSE") != "")
	err := telemetry.SetupFromEnv(ctx, "evcs-harvester")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to set up telemetry", err)
	}
	defer telemetry.Shutdown(ctx)

	commands.ExecuteContext(ctx)
}
