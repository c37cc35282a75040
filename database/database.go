package database

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"go-sniper/aggregator"
	"go-sniper/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ aggregator.Repository = (*DB)(nil)

// DB defines the database instance containing the
// connection to the SQLite type database.
type DB struct {
	conn *gorm.DB
}

// Open returns a new *DB backed by the SQLite file at path.
func Open(path string) (*DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db := &DB{conn: conn}

	if err = db.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	logrus.Debugf("Opened database %s", path)
	return db, nil
}

// Migrate migrates the current database structures.
func (db *DB) Migrate() error {
	return db.conn.AutoMigrate(
		&WorkspaceDB{},
		&ScanResultDB{},
		&VulnerabilityDB{},
		&PortDB{},
		&InvocationDB{},
		&SettingsDB{},
	)
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveResult replaces the result with its findings and stores the
// workspace rollups in one transaction.
func (db *DB) SaveResult(result models.ScanResult, ws models.Workspace) error {
	row, vulns, ports, err := resultRows(result)
	if err != nil {
		return err
	}

	return db.conn.Transaction(func(tx *gorm.DB) error {
		if err := upsertWorkspace(tx, ws); err != nil {
			return err
		}
		if err := deleteFindings(tx, result.ID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if len(vulns) > 0 {
			if err := tx.Create(&vulns).Error; err != nil {
				return err
			}
		}
		if len(ports) > 0 {
			if err := tx.Create(&ports).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteResult removes the result and stores the workspace rollups.
func (db *DB) DeleteResult(id string, ws models.Workspace) error {
	return db.conn.Transaction(func(tx *gorm.DB) error {
		if err := deleteFindings(tx, id); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("result_id = ?", id).Delete(&InvocationDB{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ScanResultDB{ID: id}).Error; err != nil {
			return err
		}
		return upsertWorkspace(tx, ws)
	})
}

// SaveWorkspace stores a workspace.
func (db *DB) SaveWorkspace(ws models.Workspace) error {
	return upsertWorkspace(db.conn, ws)
}

// DeleteWorkspace removes a workspace with every result it owns.
func (db *DB) DeleteWorkspace(name string) error {
	return db.conn.Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&ScanResultDB{}).Select("id").Where("workspace = ?", name)

		if err := tx.Where("result_id IN (?)", owned).Delete(&VulnerabilityDB{}).Error; err != nil {
			return err
		}
		if err := tx.Where("result_id IN (?)", owned).Delete(&PortDB{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("result_id IN (?)", owned).Delete(&InvocationDB{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace = ?", name).Delete(&ScanResultDB{}).Error; err != nil {
			return err
		}
		return tx.Delete(&WorkspaceDB{Name: name}).Error
	})
}

// Load returns every persisted workspace and result, findings in their
// stored order.
func (db *DB) Load() ([]models.Workspace, []models.ScanResult, error) {
	var wsRows []WorkspaceDB
	if err := db.conn.Order("name").Find(&wsRows).Error; err != nil {
		return nil, nil, err
	}
	var rows []ScanResultDB
	if err := db.conn.Order("start_time, id").Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	var vulnRows []VulnerabilityDB
	if err := db.conn.Order("result_id, position").Find(&vulnRows).Error; err != nil {
		return nil, nil, err
	}
	var portRows []PortDB
	if err := db.conn.Order("result_id, position").Find(&portRows).Error; err != nil {
		return nil, nil, err
	}

	workspaces := make([]models.Workspace, 0, len(wsRows))
	for _, w := range wsRows {
		workspaces = append(workspaces, w.model())
	}

	results := make([]models.ScanResult, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		r, err := row.model()
		if err != nil {
			return nil, nil, fmt.Errorf("decode result %s: %w", row.ID, err)
		}
		index[r.ID] = len(results)
		results = append(results, r)
	}
	for _, v := range vulnRows {
		if i, ok := index[v.ResultID]; ok {
			results[i].Vulnerabilities = append(results[i].Vulnerabilities, v.model())
		}
	}
	for _, p := range portRows {
		if i, ok := index[p.ResultID]; ok {
			results[i].Ports = append(results[i].Ports, p.model())
		}
	}
	return workspaces, results, nil
}

// SaveInvocation records the command rendered for a result.
func (db *DB) SaveInvocation(resultID string, d models.InvocationDescriptor) error {
	tokens, err := json.Marshal(d.Tokens())
	if err != nil {
		return err
	}
	return db.conn.Create(&InvocationDB{
		ResultID: resultID,
		Tool:     d.Tool,
		Tokens:   datatypes.JSON(tokens),
	}).Error
}

// Invocations returns the commands recorded for a result, oldest first.
func (db *DB) Invocations(resultID string) ([]models.InvocationDescriptor, error) {
	var rows []InvocationDB
	if err := db.conn.Where("result_id = ?", resultID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.InvocationDescriptor, 0, len(rows))
	for _, row := range rows {
		var tokens []string
		if err := json.Unmarshal(row.Tokens, &tokens); err != nil {
			return nil, fmt.Errorf("decode invocation %d: %w", row.ID, err)
		}
		d := models.InvocationDescriptor{Tool: row.Tool}
		if len(tokens) > 1 {
			d.Args = tokens[1:]
		}
		out = append(out, d)
	}
	return out, nil
}

// UpdateSettings validates and stores the panel settings.
func (db *DB) UpdateSettings(s models.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	var current SettingsDB
	if err := db.conn.FirstOrCreate(&current, SettingsDB{Model: gorm.Model{ID: 1}}).Error; err != nil {
		return err
	}
	row := settingsRow(s)
	row.Model = current.Model
	return db.conn.Save(&row).Error
}

// FetchSettings fetches the last saved settings, or the defaults when
// none were saved yet.
func (db *DB) FetchSettings() (models.Settings, error) {
	var rows []SettingsDB
	if err := db.conn.Limit(1).Find(&rows).Error; err != nil {
		return models.Settings{}, err
	}
	if len(rows) == 0 {
		return models.DefaultSettings(), nil
	}
	return rows[0].model(), nil
}

func upsertWorkspace(tx *gorm.DB, ws models.Workspace) error {
	row := workspaceRow(ws)
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func deleteFindings(tx *gorm.DB, resultID string) error {
	if err := tx.Where("result_id = ?", resultID).Delete(&VulnerabilityDB{}).Error; err != nil {
		return err
	}
	return tx.Where("result_id = ?", resultID).Delete(&PortDB{}).Error
}
