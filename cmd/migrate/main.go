// Command migrate applies ordered SQL migrations to a PostgreSQL database.
package main

import "github.com/aqasim81/migration-runner/internal/cli"

func main() {
	cli.Execute()
}
