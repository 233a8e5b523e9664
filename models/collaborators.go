package models

// Emblem is a cosmetic code asset; its Code seeds a timeline's target code.
type Emblem struct {
	ID   string `json:"id" yaml:"id" gorm:"primaryKey;type:uuid"`
	Name string `json:"name" yaml:"name" gorm:"not null"`
	Code string `json:"code" yaml:"code" gorm:"not null"` // e.g. "ABC-DEF-GHI" or "ABCDEFGHI"

	Timestamps
}

// Badge is static config; BadgeID is the business id referenced by rewards.
type Badge struct {
	ID          string `json:"id" yaml:"id" gorm:"primaryKey;type:uuid"`
	BadgeID     string `json:"badgeId" yaml:"badgeId" gorm:"uniqueIndex;not null"` // e.g. "TIMELINE_STABILIZER"
	Name        string `json:"name" yaml:"name" gorm:"not null"`
	Description string `json:"description" yaml:"description"`
	IconURL     string `json:"iconUrl" yaml:"iconUrl" gorm:"type:text"`
	Rarity      Rarity `json:"rarity" yaml:"rarity" gorm:"type:varchar(16);default:'COMMON'"`

	Timestamps
}

// Lore is an unlockable text; UnlockedBy only grows.
type Lore struct {
	ID         string   `json:"id" yaml:"id" gorm:"primaryKey;type:uuid"`
	LoreID     string   `json:"loreId" yaml:"loreId" gorm:"uniqueIndex;not null"`
	Title      string   `json:"title" yaml:"title" gorm:"not null"`
	Content    string   `json:"content" yaml:"content" gorm:"type:text"`
	UnlockedBy []string `json:"unlockedBy" yaml:"unlockedBy" gorm:"type:jsonb;serializer:json"`

	Timestamps
}

// All lists the models to migrate.
func All() []any {
	return []any{
		&Timeline{},
		&Agent{},
		&Emblem{},
		&Badge{},
		&Lore{},
	}
}
