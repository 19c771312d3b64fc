package models

import (
	"log"

	"github.com/pqpsoft/tracker_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Project{}, &Sprint{},
		&Task{}, &Comment{},
		&ScopeLogEntry{}, &ActualLogEntry{},
		&DailyHeadcount{},
		&DailyReportSnapshot{},
		&PermissionSetting{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
