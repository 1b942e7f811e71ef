package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"paper-portal/config"
	"paper-portal/models"
)

// Open stellt die einzige Datenbankverbindung des Prozesses her.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsProduction() {
		level = logger.Silent
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Successfully connected to portal database.", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return db, nil
}

// Models listet alle Tabellen in Abhängigkeitsreihenfolge.
func Models() []any {
	return []any{
		&models.State{},
		&models.User{},
		&models.Account{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Event{},
		&models.EventArea{},
		&models.EventPaperType{},
		&models.EventField{},
		&models.OrganizationToken{},
		&models.Paper{},
		&models.PaperAuthor{},
		&models.PaperFieldValue{},
		&models.PaperHistory{},
		&models.PaperReview{},
		&models.LoginLog{},
	}
}

// Migrate führt die Auto-Migration aller Modelle aus.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// defaultStates sind die brasilianischen Bundesstaaten (UF) für Profilangaben.
var defaultStates = []models.State{
	{Code: "AC", Name: "Acre"}, {Code: "AL", Name: "Alagoas"}, {Code: "AP", Name: "Amapá"},
	{Code: "AM", Name: "Amazonas"}, {Code: "BA", Name: "Bahia"}, {Code: "CE", Name: "Ceará"},
	{Code: "DF", Name: "Distrito Federal"}, {Code: "ES", Name: "Espírito Santo"}, {Code: "GO", Name: "Goiás"},
	{Code: "MA", Name: "Maranhão"}, {Code: "MT", Name: "Mato Grosso"}, {Code: "MS", Name: "Mato Grosso do Sul"},
	{Code: "MG", Name: "Minas Gerais"}, {Code: "PA", Name: "Pará"}, {Code: "PB", Name: "Paraíba"},
	{Code: "PR", Name: "Paraná"}, {Code: "PE", Name: "Pernambuco"}, {Code: "PI", Name: "Piauí"},
	{Code: "RJ", Name: "Rio de Janeiro"}, {Code: "RN", Name: "Rio Grande do Norte"}, {Code: "RS", Name: "Rio Grande do Sul"},
	{Code: "RO", Name: "Rondônia"}, {Code: "RR", Name: "Roraima"}, {Code: "SC", Name: "Santa Catarina"},
	{Code: "SP", Name: "São Paulo"}, {Code: "SE", Name: "Sergipe"}, {Code: "TO", Name: "Tocantins"},
}

// Seed legt Stammdaten an; mehrfacher Aufruf ist unschädlich.
func Seed(db *gorm.DB, log *zap.Logger) error {
	states := make([]models.State, len(defaultStates))
	for i, s := range defaultStates {
		s.ID = s.Code
		states[i] = s
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&states)
	if res.Error != nil {
		log.Warn("Failed to seed default states", zap.Error(res.Error))
		return fmt.Errorf("seed states: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Info("Default states seeded.", zap.Int64("count", res.RowsAffected))
	}
	return nil
}
