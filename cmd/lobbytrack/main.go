package main

import "lobbytrack-backend/cmd/lobbytrack/cmd"

func main() {
	cmd.Execute()
}
