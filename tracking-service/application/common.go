package application

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/pkg/errors"
)

func parseIDs(raw []string) ([]models.ID, error) {
	ids := make([]models.ID, len(raw))
	for i, s := range raw {
		id, err := models.NewID(s)
		if err != nil {
			return nil, domain.NewValidationError("invalid container ID %q", s)
		}
		ids[i] = id
	}
	return ids, nil
}

// loadContainers fetches every requested container under the given scope and
// fails with NotFound on the first missing one
func loadContainers(ctx context.Context, repo domain.ContainerRepository, ids []models.ID, scope models.Scope) ([]*domain.Container, error) {
	containers, err := repo.FindByIDs(ctx, ids, scope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load containers")
	}

	byID := make(map[models.ID]*domain.Container, len(containers))
	for _, c := range containers {
		byID[c.ID] = c
	}

	ordered := make([]*domain.Container, len(ids))
	for i, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, domain.NewNotFoundError("container", id.String())
		}
		ordered[i] = c
	}

	return ordered, nil
}

// resolveContainerUnits maps each container to the unit of its waste type
func resolveContainerUnits(ctx context.Context, repo domain.WasteTypeRepository, containers []*domain.Container) (map[models.ID]string, error) {
	seen := make(map[models.ID]struct{})
	var typeIDs []models.ID
	for _, c := range containers {
		if _, ok := seen[c.WasteTypeID]; ok {
			continue
		}
		seen[c.WasteTypeID] = struct{}{}
		typeIDs = append(typeIDs, c.WasteTypeID)
	}

	wasteTypes, err := repo.FindByIDs(ctx, typeIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve waste types")
	}

	unitByType := make(map[models.ID]string, len(wasteTypes))
	for _, wt := range wasteTypes {
		unitByType[wt.ID] = wt.Unit
	}

	units := make(map[models.ID]string, len(containers))
	for _, c := range containers {
		unit, ok := unitByType[c.WasteTypeID]
		if !ok {
			return nil, domain.NewNotFoundError("waste type", c.WasteTypeID.String())
		}
		units[c.ID] = unit
	}

	return units, nil
}
