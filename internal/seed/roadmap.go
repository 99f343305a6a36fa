package seed

import (
	"fmt"

	"plantspack/internal/models"

	"gorm.io/gorm"
)

// BuiltInRoadmapItem is a roadmap entry every installation starts with.
type BuiltInRoadmapItem struct {
	Title       string
	Description string
	Status      models.RoadmapStatus
}

// BuiltInRoadmap lists the default roadmap. Items are matched by title.
var BuiltInRoadmap = []BuiltInRoadmapItem{
	{Title: "Place map", Description: "Find vegan restaurants, stores and events near you.", Status: models.RoadmapDone},
	{Title: "Place reviews", Description: "Rate and review places you have visited.", Status: models.RoadmapDone},
	{Title: "Recipe collections", Description: "Save posts with recipes into named collections.", Status: models.RoadmapPlanned},
	{Title: "Events calendar", Description: "A shared calendar of community events and potlucks.", Status: models.RoadmapPlanned},
	{Title: "Mobile app", Description: "Native apps with offline map tiles.", Status: models.RoadmapInProgress},
	{Title: "Direct messages", Description: "Private conversations between mutual followers.", Status: models.RoadmapPlanned},
}

// Roadmap inserts the built-in roadmap items that are missing. Existing
// items keep their status and votes. It returns how many were created.
func Roadmap(db *gorm.DB) (int, error) {
	created := 0
	for _, item := range BuiltInRoadmap {
		var existing models.RoadmapItem
		res := db.Where("title = ?", item.Title).Limit(1).Find(&existing)
		if res.Error != nil {
			return created, fmt.Errorf("look up roadmap item %q: %w", item.Title, res.Error)
		}
		if res.RowsAffected > 0 {
			continue
		}
		row := models.RoadmapItem{
			Title:       item.Title,
			Description: item.Description,
			Status:      item.Status,
		}
		if err := db.Create(&row).Error; err != nil {
			return created, fmt.Errorf("seed roadmap item %q: %w", item.Title, err)
		}
		created++
	}
	return created, nil
}
