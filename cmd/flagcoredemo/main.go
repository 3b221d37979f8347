// Command flagcoredemo exercises a local Client against LocalMode, so it
// runs without a real SDK key or network access.
package main

import (
	"fmt"

	"github.com/flagcore/go-sdk"
)

func main() {
	client := flagcore.NewClientWithOptions("secret-demo-key", &flagcore.Options{
		LocalMode: true,
	})
	defer client.Shutdown()

	client.OverrideGate("demo_gate", true)
	client.OverrideConfig("demo_config", map[string]interface{}{
		"greeting": "hello from flagcore",
	})

	user := flagcore.User{UserID: "a-user-id", Email: "user@example.com"}

	if client.CheckGate(user, "demo_gate") {
		fmt.Println("demo_gate is on for", user.UserID)
	}

	config := client.GetConfig(user, "demo_config")
	fmt.Println("greeting:", config.GetString("greeting", "(default)"))
}
