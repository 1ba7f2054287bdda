package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TagMap is the per-version join between a file version and its tags: tag id (decimal string) to tag name.
// It is a plain value; callers write it back explicitly after mutating it.
type TagMap map[string]string

// Has reports whether the tag key is present.
func (m TagMap) Has(tagKey string) bool {
	_, ok := m[tagKey]
	return ok
}

// Keys returns the tag keys in ascending order.
func (m TagMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value implements driver.Valuer; a nil map is stored as an empty object.
func (m TagMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *TagMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = TagMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("TagMap: unsupported scan type %T", value)
	}

	if len(raw) == 0 {
		*m = TagMap{}
		return nil
	}

	out := TagMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("TagMap: %w", err)
	}
	*m = out
	return nil
}

// GormDBDataType picks a JSON capable column type per driver.
// MSSQL has no json type, so the map is kept as text there.
func (TagMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
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
