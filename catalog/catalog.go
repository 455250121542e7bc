// Package catalog persists detections in a SQLite database and merges them
// into event families: groups of detections close enough in time to belong
// to one underlying event.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cwbudde/algo-seismic/match"
)

// ErrClosed reports use of a closed catalog.
var ErrClosed = errors.New("catalog: closed")

// Run records one matching run.
type Run struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	StartedAt time.Time
}

// Detection is the stored form of a match.Detection.
type Detection struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	RunID          string `gorm:"type:varchar(36);index:idx_run"`
	TemplateID     string `gorm:"index:idx_template"`
	Time           time.Time `gorm:"index:idx_time"`
	CC             float64
	MADRatio       float64
	AmplitudeRatio float64
}

// Family is a group of detections merged by temporal proximity. Time is the
// time of the strongest member (largest |cc|).
type Family struct {
	Time    time.Time
	Members []Detection
}

// Catalog is a SQLite-backed detection store. It implements
// match.DetectionSink for the run it was opened with.
type Catalog struct {
	db    *gorm.DB
	runID string
}

// Open opens (or creates) the catalog database at path and starts a new run.
func Open(path string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: opening sqlite db: %w", err)
	}

	if err := db.AutoMigrate(&Run{}, &Detection{}); err != nil {
		return nil, fmt.Errorf("catalog: auto migrate: %w", err)
	}

	run := Run{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	if err := db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("catalog: recording run: %w", err)
	}

	return &Catalog{db: db, runID: run.ID}, nil
}

// RunID returns the identifier of the current run.
func (c *Catalog) RunID() string { return c.runID }

// Append stores one detection under the current run.
func (c *Catalog) Append(d match.Detection) error {
	if c.db == nil {
		return ErrClosed
	}

	rec := Detection{
		RunID:          c.runID,
		TemplateID:     d.TemplateID,
		Time:           d.Time.UTC(),
		CC:             d.CC,
		MADRatio:       d.MADRatio,
		AmplitudeRatio: d.AmplitudeRatio,
	}
	if err := c.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("catalog: storing detection: %w", err)
	}
	return nil
}

// ByTemplate returns all stored detections for a template in ascending time
// order, across runs.
func (c *Catalog) ByTemplate(templateID string) ([]Detection, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	var out []Detection
	err := c.db.Where("template_id = ?", templateID).Order("time").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: querying detections: %w", err)
	}
	return out, nil
}

// Families merges all stored detections into event families: a detection
// joins the current family while its gap to the previous detection is at
// most window, regardless of which template produced it.
func (c *Catalog) Families(window time.Duration) ([]Family, error) {
	if c.db == nil {
		return nil, ErrClosed
	}

	var dets []Detection
	if err := c.db.Order("time").Find(&dets).Error; err != nil {
		return nil, fmt.Errorf("catalog: querying detections: %w", err)
	}
	if len(dets) == 0 {
		return nil, nil
	}

	var families []Family
	current := []Detection{dets[0]}
	for _, d := range dets[1:] {
		if d.Time.Sub(current[len(current)-1].Time) <= window {
			current = append(current, d)
			continue
		}
		families = append(families, newFamily(current))
		current = []Detection{d}
	}
	families = append(families, newFamily(current))

	return families, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return fmt.Errorf("catalog: closing db: %w", err)
	}
	return sqlDB.Close()
}

func newFamily(members []Detection) Family {
	best := 0
	for i, d := range members {
		if math.Abs(d.CC) > math.Abs(members[best].CC) {
			best = i
		}
	}
	return Family{Time: members[best].Time, Members: members}
}
