// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// Interface abstracts the underlying database implementation and defines
// the operations the monitor and the review API need.
type Interface interface {
	Open() error
	Close() error

	SaveTrack(track *Track) error
	SavePlay(play *Play) error
	SaveDecision(decision *Decision, llm *LLMResult) error
	SaveAction(action *TrackAction) error

	GetPlays(limit, offset int) ([]Play, int64, error)
	GetDecisions(artistID string, limit, offset int) ([]Decision, int64, error)
	GetDecision(id string) (*Decision, error)
	GetLatestDecisionForArtist(artistID string) (*Decision, error)
	GetArtist(id string) (*Artist, error)

	SaveOverride(override *Override) error
	DeleteOverride(artistID string) error
	GetOverride(artistID string) (*Override, error)
	GetAllOverrides() ([]Override, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB                  // GORM database instance
	Metrics *metrics.DatastoreMetrics // optional, nil disables recording
}

// SaveTrack upserts a track with its album and credited artists. Existing
// rows keep their FirstSeen timestamp.
func (ds *DataStore) SaveTrack(track *Track) error {
	start := time.Now()
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if track.Album != nil && track.Album.ID != "" {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(track.Album).Error; err != nil {
				return err
			}
		}
		for i := range track.Artists {
			if track.Artists[i].FirstSeen.IsZero() {
				track.Artists[i].FirstSeen = time.Now()
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&track.Artists[i]).Error; err != nil {
				return err
			}
		}
		if track.FirstSeen.IsZero() {
			track.FirstSeen = time.Now()
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit("Artists", "Album").Create(track).Error; err != nil {
			return err
		}
		return tx.Model(track).Omit("Artists.*").Association("Artists").Replace(track.Artists)
	})
	ds.record("save_track", start, err)
	if err != nil {
		return dbError(err, "save_track")
	}
	return nil
}

// SavePlay appends one playback observation.
func (ds *DataStore) SavePlay(play *Play) error {
	start := time.Now()
	if play.PlayedAt.IsZero() {
		play.PlayedAt = time.Now()
	}
	err := ds.DB.Omit("Track").Create(play).Error
	ds.record("save_play", start, err)
	if err != nil {
		return dbError(err, "save_play")
	}
	return nil
}

// SaveDecision appends one decision with its source evidence rows and the
// optional fallback model verdict, in a single transaction.
func (ds *DataStore) SaveDecision(decision *Decision, llm *LLMResult) error {
	start := time.Now()
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(decision).Error; err != nil {
			return err
		}
		if llm != nil {
			llm.DecisionID = decision.ID
			if llm.CreatedAt.IsZero() {
				llm.CreatedAt = time.Now()
			}
			return tx.Create(llm).Error
		}
		return nil
	})
	ds.record("save_decision", start, err)
	if err != nil {
		return dbError(err, "save_decision")
	}
	return nil
}

// SaveAction appends one executed playback action.
func (ds *DataStore) SaveAction(action *TrackAction) error {
	start := time.Now()
	if action.ExecutedAt.IsZero() {
		action.ExecutedAt = time.Now()
	}
	err := ds.DB.Create(action).Error
	ds.record("save_action", start, err)
	if err != nil {
		return dbError(err, "save_action")
	}
	return nil
}

// GetPlays returns one page of the play history, newest first, with the
// total row count for pagination.
func (ds *DataStore) GetPlays(limit, offset int) ([]Play, int64, error) {
	start := time.Now()
	var total int64
	if err := ds.DB.Model(&Play{}).Count(&total).Error; err != nil {
		ds.record("get_plays", start, err)
		return nil, 0, dbError(err, "get_plays")
	}

	var plays []Play
	err := ds.DB.Preload("Track").Preload("Track.Artists").Preload("Track.Album").
		Order("played_at DESC").
		Limit(limit).Offset(offset).
		Find(&plays).Error
	ds.record("get_plays", start, err)
	if err != nil {
		return nil, 0, dbError(err, "get_plays")
	}
	return plays, total, nil
}

// GetDecisions returns one page of decisions, newest first, optionally
// filtered to one artist.
func (ds *DataStore) GetDecisions(artistID string, limit, offset int) ([]Decision, int64, error) {
	start := time.Now()
	query := ds.DB.Model(&Decision{})
	if artistID != "" {
		query = query.Where("artist_id = ?", artistID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		ds.record("get_decisions", start, err)
		return nil, 0, dbError(err, "get_decisions")
	}

	var decisions []Decision
	err := query.Preload("SourceResults").Preload("LLMResult").
		Order("decided_at DESC").
		Limit(limit).Offset(offset).
		Find(&decisions).Error
	ds.record("get_decisions", start, err)
	if err != nil {
		return nil, 0, dbError(err, "get_decisions")
	}
	return decisions, total, nil
}

// GetDecision returns one decision by id with its evidence.
func (ds *DataStore) GetDecision(id string) (*Decision, error) {
	start := time.Now()
	var decision Decision
	err := ds.DB.Preload("SourceResults").Preload("LLMResult").
		First(&decision, "id = ?", id).Error
	ds.record("get_decision", start, err)
	if err != nil {
		return nil, dbError(err, "get_decision")
	}
	return &decision, nil
}

// GetLatestDecisionForArtist returns the most recent decision for an
// artist.
func (ds *DataStore) GetLatestDecisionForArtist(artistID string) (*Decision, error) {
	start := time.Now()
	var decision Decision
	err := ds.DB.Preload("SourceResults").Preload("LLMResult").
		Where("artist_id = ?", artistID).
		Order("decided_at DESC").
		First(&decision).Error
	ds.record("get_latest_decision", start, err)
	if err != nil {
		return nil, dbError(err, "get_latest_decision")
	}
	return &decision, nil
}

// GetArtist returns one artist by id.
func (ds *DataStore) GetArtist(id string) (*Artist, error) {
	start := time.Now()
	var artist Artist
	err := ds.DB.First(&artist, "id = ?", id).Error
	ds.record("get_artist", start, err)
	if err != nil {
		return nil, dbError(err, "get_artist")
	}
	return &artist, nil
}

// SaveOverride creates or replaces the override for an artist.
func (ds *DataStore) SaveOverride(override *Override) error {
	start := time.Now()
	override.UpdatedAt = time.Now()
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "artist_id"}},
		UpdateAll: true,
	}).Create(override).Error
	ds.record("save_override", start, err)
	if err != nil {
		return dbError(err, "save_override")
	}
	return nil
}

// DeleteOverride removes the override for an artist. Deleting a missing
// override is an error so the API can answer 404.
func (ds *DataStore) DeleteOverride(artistID string) error {
	start := time.Now()
	result := ds.DB.Delete(&Override{}, "artist_id = ?", artistID)
	ds.record("delete_override", start, result.Error)
	if result.Error != nil {
		return dbError(result.Error, "delete_override")
	}
	if result.RowsAffected == 0 {
		return errors.Newf("no override for artist %s", artistID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("artist_id", artistID).
			Build()
	}
	return nil
}

// GetOverride returns the override for an artist.
func (ds *DataStore) GetOverride(artistID string) (*Override, error) {
	start := time.Now()
	var override Override
	err := ds.DB.First(&override, "artist_id = ?", artistID).Error
	ds.record("get_override", start, err)
	if err != nil {
		return nil, dbError(err, "get_override")
	}
	return &override, nil
}

// GetAllOverrides returns every override, used to hydrate the in memory
// store at startup.
func (ds *DataStore) GetAllOverrides() ([]Override, error) {
	start := time.Now()
	var overrides []Override
	err := ds.DB.Order("artist_id").Find(&overrides).Error
	ds.record("get_all_overrides", start, err)
	if err != nil {
		return nil, dbError(err, "get_all_overrides")
	}
	return overrides, nil
}

// IsNotFound reports whether err is a missing-row error from any datastore
// operation.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.HasCategory(err, errors.CategoryNotFound)
}

// record tracks operation metrics when a collector is attached.
func (ds *DataStore) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ds.Metrics.RecordOperation(operation, status)
	ds.Metrics.RecordDuration(operation, time.Since(start).Seconds())
	if err != nil {
		ds.Metrics.RecordError(operation, "query")
	}
}

// dbError wraps a gorm error with component and category, preserving
// record-not-found for IsNotFound checks.
func dbError(err error, operation string) error {
	category := errors.CategoryDatabase
	if errors.Is(err, gorm.ErrRecordNotFound) {
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation).
		Build()
}
