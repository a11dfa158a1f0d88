package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the tables of every model.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&Template{}, &TemplateVersion{}, &Document{}, &AccessLog{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}

	return nil
}
