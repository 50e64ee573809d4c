package zones

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keepmyplanet/backend/internal/models"
)

func TestStateChangeRepositoryIsAppendOnly(t *testing.T) {
	repo := &StateChangeRepository{}

	err := repo.Update(context.Background(), &models.ZoneStateChange{})
	require.ErrorIs(t, err, ErrImmutable)

	err = repo.DeleteByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrImmutable)
}
