package logs

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"dataforge-api/internal/util"
)

type LogService struct {
	DB *gorm.DB
}

func (ls *LogService) Log(log SystemLog, metadata interface{}) error {
	var metaStr *string

	// Convert metadata (map/struct) to JSON string if provided
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			str := string(b)
			metaStr = &str
		}
	}

	newLog := SystemLog{
		Level:     log.Level,
		Service:   log.Service,
		UserID:    log.UserID,
		Author:    log.Author,
		Action:    log.Action,
		Message:   log.Message,
		DatasetID: log.DatasetID,
		VersionID: log.VersionID,
		Metadata:  metaStr,
		CreatedAt: time.Now(),
	}

	return ls.DB.Create(&newLog).Error
}

func (ls *LogService) GetLogs(input LogFilterInput) ([]SystemLog, LogAggregates, int64, int, error) {
	input.normalize()

	base := ls.DB.Table("logs")

	// Default: last 30 days if no dates
	if input.StartDate == nil && input.EndDate == nil {
		base = base.Where("logs.created_at >= ?", time.Now().AddDate(0, 0, -30))
	}

	// Filters
	if input.UserID != nil {
		base = base.Where("logs.user_id = ?", *input.UserID)
	}
	if input.Level != nil && strings.TrimSpace(*input.Level) != "" {
		base = base.Where("logs.level = ?", strings.TrimSpace(*input.Level))
	}
	if input.Service != nil && strings.TrimSpace(*input.Service) != "" {
		base = base.Where("logs.service = ?", strings.TrimSpace(*input.Service))
	}
	if input.Action != nil && strings.TrimSpace(*input.Action) != "" {
		base = base.Where("logs.action = ?", strings.TrimSpace(*input.Action))
	}
	if input.DatasetID != nil {
		base = base.Where("logs.dataset_id = ?", *input.DatasetID)
	}
	if input.VersionID != nil && strings.TrimSpace(*input.VersionID) != "" {
		base = base.Where("logs.version_id = ?", strings.TrimSpace(*input.VersionID))
	}

	// Date range (inclusive end-day)
	start, hasStart, endExclusive, hasEnd, err := util.ParseDateRange(input.StartDate, input.EndDate)
	if err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}
	if hasStart {
		base = base.Where("logs.created_at >= ?", start)
	}
	if hasEnd {
		base = base.Where("logs.created_at < ?", endExclusive)
	}

	// Search across columns
	if input.Search != nil && strings.TrimSpace(*input.Search) != "" {
		like := "%" + strings.TrimSpace(*input.Search) + "%"
		base = base.Where(
			`CAST(logs.id AS TEXT) ILIKE ?
			 OR logs.level ILIKE ?
			 OR logs.service ILIKE ?
			 OR logs.action ILIKE ?
			 OR logs.message ILIKE ?
			 OR COALESCE(logs.author,'') ILIKE ?
			 OR COALESCE(logs.version_id,'') ILIKE ?`,
			like, like, like, like, like, like, like,
		)
	}

	// Total count (no paging)
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(input.PageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	// Paged logs
	var rows []SystemLog
	if err := base.
		Session(&gorm.Session{}).
		Order("logs.created_at DESC").
		Limit(input.PageSize).
		Offset((input.Page - 1) * input.PageSize).
		Scan(&rows).Error; err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	// Aggregates from same filtered base
	aggs, err := ls.getAggregatesFromBase(base)
	if err != nil {
		return nil, LogAggregates{}, 0, 0, err
	}

	return rows, aggs, total, totalPages, nil
}

func (ls *LogService) getAggregatesFromBase(base *gorm.DB) (LogAggregates, error) {
	aggs := LogAggregates{}
	limit := 12

	// Use derived table so filters are identical
	sub := base.Session(&gorm.Session{}).
		Select("logs.user_id, logs.author, logs.action, logs.dataset_id")

	derived := ls.DB.Table("(?) as x", sub)

	// 1) By action
	{
		type r struct {
			Label string
			Count int64
		}
		var out []r

		if err := derived.Session(&gorm.Session{}).
			Select("x.action AS label, COUNT(*) AS count").
			Group("label").
			Order("count DESC").
			Limit(limit).
			Scan(&out).Error; err != nil {
			return LogAggregates{}, err
		}

		aggs.ByAction = make([]AggItem, 0, len(out))
		for _, row := range out {
			aggs.ByAction = append(aggs.ByAction, AggItem{Label: row.Label, Count: row.Count})
		}
	}

	// 2) By dataset
	{
		type r struct {
			Label string
			Count int64
		}
		var out []r

		if err := derived.Session(&gorm.Session{}).
			Select("COALESCE(CAST(x.dataset_id AS TEXT), 'No dataset') AS label, COUNT(*) AS count").
			Group("label").
			Order("count DESC").
			Limit(limit).
			Scan(&out).Error; err != nil {
			return LogAggregates{}, err
		}

		aggs.ByDataset = make([]AggItem, 0, len(out))
		for _, row := range out {
			aggs.ByDataset = append(aggs.ByDataset, AggItem{Label: row.Label, Count: row.Count})
		}
	}

	// 3) By person
	{
		type r struct {
			UserID *uint
			Label  string
			Count  int64
		}
		var out []r

		if err := derived.Session(&gorm.Session{}).
			Select(`
				x.user_id,
				COALESCE(NULLIF(TRIM(x.author), ''), 'Unknown') AS label,
				COUNT(*) AS count
			`).
			Group("x.user_id, label").
			Order("count DESC").
			Limit(limit).
			Scan(&out).Error; err != nil {
			return LogAggregates{}, err
		}

		aggs.ByPerson = make([]PersonAggItem, 0, len(out))
		for _, row := range out {
			aggs.ByPerson = append(aggs.ByPerson, PersonAggItem{
				UserID: row.UserID,
				Label:  row.Label,
				Count:  row.Count,
			})
		}
	}

	return aggs, nil
}
