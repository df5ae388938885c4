package models

import (
	"database/sql/driver"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON wraps gorm.io/datatypes.JSON so item data maps onto a column type
// every supported driver accepts.
type JSON struct {
	datatypes.JSON
}

// NewJSON encodes v into a JSON column value
func NewJSON(v interface{}) (JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return JSON{}, err
	}
	return JSON{JSON: datatypes.JSON(raw)}, nil
}

// Map decodes the column into a field map; an empty column yields an empty map.
func (j JSON) Map() (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if len(j.JSON) == 0 || string(j.JSON) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(j.JSON, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Value promotes the embedded JSON's Value method
func (j JSON) Value() (driver.Value, error) {
	return j.JSON.Value()
}

// Scan promotes the embedded JSON's Scan method
func (j *JSON) Scan(value interface{}) error {
	return j.JSON.Scan(value)
}

// GormDBDataType ensures the correct data type is used for each database driver.
// MSSQL does not support the 'json' data type.
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	case "sqlite":
		return "JSON"
	}
	return "TEXT"
}
