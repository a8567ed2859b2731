package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/opname/internal/config"
	"github.com/vbonduro/opname/internal/domain"
)

func newTestMigrator(env *testEnv) *LegacyMigrator {
	return NewLegacyMigrator(env.repos.Audits, env.repos.Sections, env.repos.Photos,
		env.pipeline, env.files, config.DefaultLegacySections, slog.Default())
}

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot(strings.NewReader(`{
		"name": "Basisschool De Linde",
		"address": "Lindelaan 4",
		"postcode": "1234 AB",
		"latitude": "52,0907",
		"longitude": 5.1214,
		"construction_year": "1982",
		"audit_type": "advanced",
		"building_photo": "data:image/png;base64,AAAA",
		"verlichting": {"lamps": 40, "type": ["led", "tl"]},
		"koeling": {},
		"timestamp": 1700000000
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Basisschool De Linde", snap.Building.Name)
	assert.Equal(t, domain.AuditTypeAdvanced, snap.Building.Type)
	require.NotNil(t, snap.Building.Latitude)
	assert.InDelta(t, 52.0907, *snap.Building.Latitude, 1e-9)
	require.NotNil(t, snap.Building.Longitude)
	assert.InDelta(t, 5.1214, *snap.Building.Longitude, 1e-9)
	require.NotNil(t, snap.Building.ConstructionYear)
	assert.Equal(t, int64(1982), *snap.Building.ConstructionYear)
	assert.Nil(t, snap.Building.Area)
	assert.Equal(t, "data:image/png;base64,AAAA", snap.BuildingPhoto)
	assert.Len(t, snap.Sections, 2)
	assert.Contains(t, snap.Sections, "verlichting")
}

func TestParseSnapshot_Invalid(t *testing.T) {
	_, err := ParseSnapshot(strings.NewReader(`[1, 2]`))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = ParseSnapshot(strings.NewReader(`{"name": "x", "latitude": "noord"}`))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestLegacyMigratorMigrate(t *testing.T) {
	env := newTestEnv(t)
	m := newTestMigrator(env)
	ctx := context.Background()

	snap, err := ParseSnapshot(strings.NewReader(fmt.Sprintf(`{
		"name": "Zwembad De Vliet",
		"building_photo": %q,
		"verwarmingssysteem": {"heating_type": "CV-ketel", "heating_zones": 3, "boiler_photo": %q},
		"verlichting": {"lamps": 40, "armatuur": %q, "schakelaar": %q},
		"koeling": {},
		"tuin": {"bomen": 3}
	}`, pngDataURL(t), pngDataURL(t), pngDataURL(t), pngDataURL(t))))
	require.NoError(t, err)

	report, err := m.Migrate(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sections)
	assert.Equal(t, 3, report.Answers)
	assert.Equal(t, 4, report.Photos)
	assert.Zero(t, report.ImageFailures)
	assert.Equal(t, []string{"tuin"}, report.Ignored)

	audit, err := env.audits.GetByID(ctx, report.AuditID)
	require.NoError(t, err)
	require.NotNil(t, audit)
	assert.Equal(t, domain.StatusCompleted, audit.Status)
	assert.Equal(t, "Zwembad De Vliet", audit.Name)

	sections, err := env.repos.Sections.ListByAudit(ctx, report.AuditID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	for _, s := range sections {
		assert.Equal(t, LegacySectionType, s.Type)
		assert.True(t, s.Completed)
	}

	auditPhotos, err := env.photos.ListAuditPhotos(ctx, report.AuditID)
	require.NoError(t, err)
	assert.Len(t, auditPhotos, 1)

	sectionPhotos, err := env.photos.ListSectionPhotos(ctx, report.AuditID, "verlichting")
	require.NoError(t, err)
	require.Len(t, sectionPhotos, 2)
	assert.Equal(t, "armatuur", sectionPhotos[0].QuestionID)
	assert.Equal(t, "schakelaar", sectionPhotos[1].QuestionID)

	files, err := env.files.ListFiles(ctx, "audits/"+report.AuditID)
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestLegacyMigratorContinuesPastImageFailures(t *testing.T) {
	env := newTestEnv(t)
	m := newTestMigrator(env)
	ctx := context.Background()

	snap := &Snapshot{
		Building:      LegacyBuilding{Name: "Kantoor"},
		BuildingPhoto: "data:image/png;base64,###",
		Sections: map[string]map[string]any{
			"ventilatie": {
				"system":  "D",
				"broken":  "data:image/jpeg;base64,***",
				"wrong":   "data:text/plain;base64,aGk=",
				"unit":    pngDataURL(t),
				"section": "ventilatie",
			},
		},
	}

	report, err := m.Migrate(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sections)
	assert.Equal(t, 2, report.Answers)
	assert.Equal(t, 1, report.Photos)
	assert.Equal(t, 2, report.ImageFailures)
	assert.Len(t, report.Errors, 2)
}

func TestLegacyMigratorDoesNotDeduplicate(t *testing.T) {
	env := newTestEnv(t)
	m := newTestMigrator(env)
	ctx := context.Background()
	snap := &Snapshot{Building: LegacyBuilding{Name: "Kerk"}}

	first, err := m.Migrate(ctx, snap)
	require.NoError(t, err)
	second, err := m.Migrate(ctx, snap)
	require.NoError(t, err)

	assert.NotEqual(t, first.AuditID, second.AuditID)
	ids, err := env.audits.ListIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestLegacyMigratorValidatesBuilding(t *testing.T) {
	env := newTestEnv(t)
	m := newTestMigrator(env)

	_, err := m.Migrate(context.Background(), &Snapshot{Building: LegacyBuilding{Type: "premium"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	ids, err := env.audits.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
