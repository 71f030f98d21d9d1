package main

import (
	"os"

	"github.com/groceryplus/admin-console/internal/tools/adminctl"
)

func main() {
	os.Exit(adminctl.Execute())
}
