package db

import (
	"os"
	"path/filepath"

	"github.com/hublend/hublend-settler/internal/config"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DatabaseManager struct {
	hubDb      *gorm.DB
	spokeDb    *gorm.DB
	registryDb *gorm.DB
}

func NewDatabaseManager() *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB(config.AppConfig.DbDir)
	return dm
}

// NewDatabaseManagerAt opens the databases under a caller-chosen directory,
// used by tests to avoid the configured data dir.
func NewDatabaseManagerAt(dbDir string) *DatabaseManager {
	dm := &DatabaseManager{}
	dm.initDB(dbDir)
	return dm
}

func (dm *DatabaseManager) initDB(dbDir string) {
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	hubPath := filepath.Join(dbDir, "hub_ledger.db")
	hubDb, err := gorm.Open(sqlite.Open(hubPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to hub ledger database: %v", err)
	}
	dm.hubDb = hubDb
	log.Debugf("Hub ledger database connected, path: %s", hubPath)

	spokePath := filepath.Join(dbDir, "spoke_fill.db")
	spokeDb, err := gorm.Open(sqlite.Open(spokePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to spoke fill database: %v", err)
	}
	dm.spokeDb = spokeDb
	log.Debugf("Spoke fill database connected, path: %s", spokePath)

	registryPath := filepath.Join(dbDir, "registry.db")
	registryDb, err := gorm.Open(sqlite.Open(registryPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to registry database: %v", err)
	}
	dm.registryDb = registryDb
	log.Debugf("Registry database connected, path: %s", registryPath)

	dm.autoMigrate()
	log.Debugf("Database migration completed successfully")
}

func (dm *DatabaseManager) GetHubDB() *gorm.DB {
	return dm.hubDb
}

func (dm *DatabaseManager) GetSpokeDB() *gorm.DB {
	return dm.spokeDb
}

func (dm *DatabaseManager) GetRegistryDB() *gorm.DB {
	return dm.registryDb
}
