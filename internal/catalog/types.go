package catalog

import (
	"fmt"

	"github.com/feedvault/feedvault/internal/model"
)

// datasetJSON mirrors one entry of the /api/datasets payload.
type datasetJSON struct {
	DatagouvID string         `json:"datagouv_id"`
	Title      string         `json:"title"`
	Type       string         `json:"type"`
	Resources  []resourceJSON `json:"resources"`
}

type resourceJSON struct {
	Title    string                `json:"title"`
	URL      string                `json:"url"`
	Format   string                `json:"format"`
	Updated  string                `json:"updated"`
	Metadata *resourceMetadataJSON `json:"metadata"`
}

type resourceMetadataJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// dataset validates the fields the backup core relies on.
func (d datasetJSON) dataset() (model.Dataset, error) {
	if d.DatagouvID == "" {
		return model.Dataset{}, fmt.Errorf("dataset %q has no datagouv_id", d.Title)
	}
	if d.Title == "" {
		return model.Dataset{}, fmt.Errorf("dataset %s has no title", d.DatagouvID)
	}
	return model.Dataset{ID: d.DatagouvID, Title: d.Title, Kind: d.Type}, nil
}

func (r resourceJSON) toModel(ds model.Dataset) model.Resource {
	res := model.Resource{
		Dataset:   ds,
		Title:     r.Title,
		URL:       r.URL,
		Format:    r.Format,
		UpdatedAt: r.Updated,
	}
	if r.Metadata != nil {
		res.ValidityStart = r.Metadata.StartDate
		res.ValidityEnd = r.Metadata.EndDate
	}
	return res
}
