package datastore

import "time"

// CacheMetadata is one photo cache entry. The entry's photos and shown
// markers share its CacheKey.
type CacheMetadata struct {
	CacheKey   string    `gorm:"primaryKey;size:255"`
	CachedAt   time.Time `gorm:"not null;index"`
	PhotoCount int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM.
func (CacheMetadata) TableName() string {
	return "cache_metadata"
}

// PhotoCache holds one cached photo. Payload is the JSON encoded model.Photo.
type PhotoCache struct {
	ID       uint   `gorm:"primaryKey"`
	CacheKey string `gorm:"size:255;not null;uniqueIndex:idx_photo_cache_key_photo"`
	PhotoID  string `gorm:"size:128;not null;uniqueIndex:idx_photo_cache_key_photo"`
	Position int    `gorm:"not null"`
	Payload  string `gorm:"type:text;not null"`
}

// TableName returns the table name for GORM.
func (PhotoCache) TableName() string {
	return "photo_cache"
}

// ShownPhoto marks a cached photo as shown in the current rotation.
type ShownPhoto struct {
	CacheKey string    `gorm:"primaryKey;size:255"`
	PhotoID  string    `gorm:"primaryKey;size:128"`
	ShownAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (ShownPhoto) TableName() string {
	return "shown_photos"
}

// WallpaperHistory is one shown photo. Payload is the photo snapshot taken
// the first time it was shown.
type WallpaperHistory struct {
	PhotoID    string    `gorm:"primaryKey;size:128"`
	Payload    string    `gorm:"type:text;not null"`
	ShownAt    time.Time `gorm:"not null;index"`
	IsFavorite bool      `gorm:"not null;default:false;index"`
	TimesShown int       `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (WallpaperHistory) TableName() string {
	return "wallpaper_history"
}

// allEntities lists every migrated entity.
func allEntities() []any {
	return []any{
		&CacheMetadata{},
		&PhotoCache{},
		&ShownPhoto{},
		&WallpaperHistory{},
	}
}
