// This program performs administrative tasks for the ledger: fleet keys,
// signed events, local mining and database migrations.
package main

import "github.com/ardanlabs/cryptoverse/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
