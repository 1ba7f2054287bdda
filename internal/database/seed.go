package database

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"gorm.io/gorm"
)

// Fixture is the shape of the embedded seed files
type Fixture struct {
	Sources []string `json:"sources"`
	Users   []struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	} `json:"users"`
	Compounds []struct {
		Name    string `json:"name"`
		Source  string `json:"source"`
		Studies []struct {
			Name             string `json:"name"`
			DatabaseReleases []struct {
				Name             string   `json:"name"`
				ReportingEfforts []string `json:"reporting_efforts"`
			} `json:"database_releases"`
		} `json:"studies"`
	} `json:"compounds"`
}

// Seed loads a fixture; rows that already exist by name are left alone.
func Seed(db *gorm.DB, raw []byte) error {
	var fx Fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return errors.Wrap(err, "decode seed fixture")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		sources := make(map[string]uint)
		for _, name := range fx.Sources {
			src := models.Source{Name: name}
			if err := tx.Where(models.Source{Name: name}).FirstOrCreate(&src).Error; err != nil {
				return errors.Wrapf(err, "seed source %s", name)
			}
			sources[name] = src.ID
		}

		for _, u := range fx.Users {
			user := models.User{Username: u.Username, Email: u.Email, Role: u.Role}
			if err := tx.Where(models.User{Username: u.Username}).FirstOrCreate(&user).Error; err != nil {
				return errors.Wrapf(err, "seed user %s", u.Username)
			}
		}

		for _, c := range fx.Compounds {
			sourceID, ok := sources[c.Source]
			if !ok {
				return errors.Errorf("compound %s references unknown source %s", c.Name, c.Source)
			}
			compound := models.Compound{Name: c.Name, SourceID: sourceID}
			if err := tx.Where(models.Compound{Name: c.Name, SourceID: sourceID}).FirstOrCreate(&compound).Error; err != nil {
				return errors.Wrapf(err, "seed compound %s", c.Name)
			}

			for _, s := range c.Studies {
				study := models.Study{Name: s.Name, CompoundID: compound.ID}
				if err := tx.Where(study).FirstOrCreate(&study).Error; err != nil {
					return errors.Wrapf(err, "seed study %s", s.Name)
				}

				for _, d := range s.DatabaseReleases {
					dbr := models.DatabaseRelease{Name: d.Name, StudyID: study.ID}
					if err := tx.Where(dbr).FirstOrCreate(&dbr).Error; err != nil {
						return errors.Wrapf(err, "seed database release %s", d.Name)
					}

					for _, reName := range d.ReportingEfforts {
						re := models.ReportingEffort{Name: reName, DatabaseReleaseID: dbr.ID}
						if err := tx.Where(re).FirstOrCreate(&re).Error; err != nil {
							return errors.Wrapf(err, "seed reporting effort %s", reName)
						}
					}
				}
			}
		}

		return nil
	})
}
