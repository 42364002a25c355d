package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/crypto"
)

// documentModel is the single-row GORM table backing the settings
// document. FavoriteModels is stored as a JSON-encoded string since GORM's
// sqlite driver has no native string-slice column type.
type documentModel struct {
	ID                    uint   `gorm:"primaryKey"`
	AuthScope             string
	ApiKey                string `gorm:"type:text"`
	ProvisioningKey       string `gorm:"type:text"`
	FavoriteModelsJSON    string `gorm:"type:text"`
	ProxyPort             int
	ProxyPortRangeStart   int
	ProxyPortRangeEnd     int
	ProxyAutoStart        bool
	AutoRefresh           bool
	RefreshInterval       int
	ShowCosts             bool
	TrackGenerations      bool
	MaxTrackedGenerations int
	DefaultMaxTokens      int
	HasSeenWelcome        bool
	HasCompletedSetup     bool
	LastSeenVersion       string
}

func (documentModel) TableName() string { return "settings_document" }

// Store persists a Settings document to a single-row SQLite table,
// encrypting ApiKey/ProvisioningKey through env before every write and
// decrypting them on read.
type Store struct {
	db  *gorm.DB
	env *crypto.Envelope
}

// OpenStore opens (creating if absent) the sqlite database at path and
// migrates the settings table.
func OpenStore(path string, env *crypto.Envelope) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("settings: open database: %w", err)
	}
	if err := db.AutoMigrate(&documentModel{}); err != nil {
		return nil, fmt.Errorf("settings: migrate: %w", err)
	}
	return &Store{db: db, env: env}, nil
}

// Load populates s from the persisted document, or leaves s at its
// zero/default values when no document exists yet (first run).
func (st *Store) Load(s *Settings) error {
	var row documentModel
	err := st.db.First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}

	s.AuthScope = AuthScope(row.AuthScope)
	s.ApiKey = st.env.Decrypt(row.ApiKey)
	s.ProvisioningKey = st.env.Decrypt(row.ProvisioningKey)
	if row.FavoriteModelsJSON != "" {
		_ = json.Unmarshal([]byte(row.FavoriteModelsJSON), &s.FavoriteModels)
	}
	s.ProxyPort = row.ProxyPort
	if row.ProxyPortRangeStart != 0 {
		s.ProxyPortRangeStart = row.ProxyPortRangeStart
	}
	if row.ProxyPortRangeEnd != 0 {
		s.ProxyPortRangeEnd = row.ProxyPortRangeEnd
	}
	s.ProxyAutoStart = row.ProxyAutoStart
	s.AutoRefresh = row.AutoRefresh
	if row.RefreshInterval != 0 {
		s.RefreshInterval = row.RefreshInterval
	}
	s.ShowCosts = row.ShowCosts
	s.TrackGenerations = row.TrackGenerations
	if row.MaxTrackedGenerations != 0 {
		s.MaxTrackedGenerations = row.MaxTrackedGenerations
	}
	s.DefaultMaxTokens = row.DefaultMaxTokens
	s.HasSeenWelcome = row.HasSeenWelcome
	s.HasCompletedSetup = row.HasCompletedSetup
	s.LastSeenVersion = row.LastSeenVersion
	return nil
}

// Save writes s through to the single settings row, upserting id=1.
func (st *Store) Save(s *Settings) error {
	s.mu.RLock()
	favJSON, _ := json.Marshal(s.FavoriteModels)
	row := documentModel{
		ID:                    1,
		AuthScope:             string(s.AuthScope),
		ApiKey:                st.env.Encrypt(s.ApiKey),
		ProvisioningKey:       st.env.Encrypt(s.ProvisioningKey),
		FavoriteModelsJSON:    string(favJSON),
		ProxyPort:             s.ProxyPort,
		ProxyPortRangeStart:   s.ProxyPortRangeStart,
		ProxyPortRangeEnd:     s.ProxyPortRangeEnd,
		ProxyAutoStart:        s.ProxyAutoStart,
		AutoRefresh:           s.AutoRefresh,
		RefreshInterval:       s.RefreshInterval,
		ShowCosts:             s.ShowCosts,
		TrackGenerations:      s.TrackGenerations,
		MaxTrackedGenerations: s.MaxTrackedGenerations,
		DefaultMaxTokens:      s.DefaultMaxTokens,
		HasSeenWelcome:        s.HasSeenWelcome,
		HasCompletedSetup:     s.HasCompletedSetup,
		LastSeenVersion:       s.LastSeenVersion,
	}
	s.mu.RUnlock()

	if err := st.db.Save(&row).Error; err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (st *Store) Close() error {
	sqlDB, err := st.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
