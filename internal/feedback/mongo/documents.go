package mongo

import (
	"time"

	"goa.design/capsearch/internal/domain"
)

type searchQueryDocument struct {
	SearchID       string    `bson:"search_id"`
	QueryText      string    `bson:"query_text"`
	NormalizedHash string    `bson:"normalized_hash"`
	CallerID       string    `bson:"caller_id"`
	Mode           string    `bson:"mode"`
	Verbosity      string    `bson:"verbosity"`
	ResultIDs      []string  `bson:"result_ids"`
	ResultCount    int       `bson:"result_count"`
	ResponseTimeMS int64     `bson:"response_time_ms"`
	Timestamp      time.Time `bson:"timestamp"`
}

func fromSearchRecord(rec domain.SearchQueryRecord) searchQueryDocument {
	return searchQueryDocument{
		SearchID:       rec.SearchID,
		QueryText:      rec.QueryText,
		NormalizedHash: rec.NormalizedHash,
		CallerID:       rec.CallerID,
		Mode:           rec.Mode,
		Verbosity:      rec.Verbosity,
		ResultIDs:      rec.ResultIDs,
		ResultCount:    rec.ResultCount,
		ResponseTimeMS: rec.ResponseTimeMS,
		Timestamp:      rec.Timestamp,
	}
}

func (d searchQueryDocument) toDomain() domain.SearchQueryRecord {
	return domain.SearchQueryRecord{
		SearchID:       d.SearchID,
		QueryText:      d.QueryText,
		NormalizedHash: d.NormalizedHash,
		CallerID:       d.CallerID,
		Mode:           d.Mode,
		Verbosity:      d.Verbosity,
		ResultIDs:      d.ResultIDs,
		ResultCount:    d.ResultCount,
		ResponseTimeMS: d.ResponseTimeMS,
		Timestamp:      d.Timestamp,
	}
}

type userSelectionDocument struct {
	SearchID     string    `bson:"search_id"`
	Position     int       `bson:"position"`
	SelectedID   string    `bson:"selected_id"`
	CallerID     string    `bson:"caller_id"`
	Timestamp    time.Time `bson:"timestamp"`
	Satisfaction *bool     `bson:"satisfaction,omitempty"`
}

func fromSelectionRecord(rec domain.UserSelectionRecord) userSelectionDocument {
	return userSelectionDocument{
		SearchID:     rec.SearchID,
		Position:     rec.Position,
		SelectedID:   rec.SelectedID,
		CallerID:     rec.CallerID,
		Timestamp:    rec.Timestamp,
		Satisfaction: rec.Satisfaction,
	}
}

func (d userSelectionDocument) toDomain() domain.UserSelectionRecord {
	return domain.UserSelectionRecord{
		SearchID:     d.SearchID,
		Position:     d.Position,
		SelectedID:   d.SelectedID,
		CallerID:     d.CallerID,
		Timestamp:    d.Timestamp,
		Satisfaction: d.Satisfaction,
	}
}
