package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.openDB == nil {
		return errors.New("migrations need the postgres database engine")
	}
	db, err := cli.openDB()
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	return gooseRunFunc(db, args[0], args[1:]...)
}
