// Command libctl is the operator CLI of the library service: schema
// migration, demo data, bootstrap admin accounts, the overdue sweep and
// the lending event consumer.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
