package mysql

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

const dsnTemplate = "%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local"

func dsn(c connection) string {
	return fmt.Sprintf(dsnTemplate,
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// NewMySQLDB creates the mysql master/replicas cluster used for
// reputation records, proof events and deal id mappings.
func NewMySQLDB(cfg Config) (*gorm.DB, error) {
	masterDSN := dsn(cfg.Master)
	var replicaDSNs []gorm.Dialector
	for _, replica := range cfg.Replicas {
		replicaDSNs = append(replicaDSNs, mysql.Open(dsn(replica)))
	}

	db, err := gorm.Open(mysql.Open(masterDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.LogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open master mysql")
	}

	dbResolverCfg := dbresolver.Config{
		Sources:  []gorm.Dialector{mysql.Open(masterDSN)},
		Replicas: replicaDSNs,
		Policy:   dbresolver.RandomPolicy{}}
	if err := db.Use(dbresolver.Register(dbResolverCfg).
		SetConnMaxIdleTime(time.Hour).
		SetConnMaxLifetime(24 * time.Hour).
		SetMaxIdleConns(cfg.ConnCfg.MaxIdleConns).
		SetMaxOpenConns(cfg.ConnCfg.MaxOpenConns),
	); err != nil {
		return nil, err
	}

	return db, nil
}
