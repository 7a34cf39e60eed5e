package main

import (
	// Register database drivers
	_ "github.com/rediwo/redi-migrate/drivers/mysql"
	_ "github.com/rediwo/redi-migrate/drivers/postgresql"
	_ "github.com/rediwo/redi-migrate/drivers/sqlite"
)

func main() {
	Execute()
}
